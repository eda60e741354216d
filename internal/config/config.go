// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

// Package config provides layered configuration loading for Reelpulse
// using Koanf v2: struct defaults, then an optional YAML file, then
// environment variables (highest priority).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Reelpulse server.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Store   StoreConfig   `koanf:"store"`
	Ingest  IngestConfig  `koanf:"ingest"`
	Ranking RankingConfig `koanf:"ranking"`
	Feed    FeedConfig    `koanf:"feed"`
	Session SessionConfig `koanf:"session"`
	API     APIConfig     `koanf:"api"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development or production
}

// StoreConfig holds settings for the durable key-value store (BadgerDB).
type StoreConfig struct {
	// Path is the directory for badger data files.
	Path string `koanf:"path"`

	// InMemory runs badger without disk persistence. Used in tests and
	// ephemeral deployments.
	InMemory bool `koanf:"in_memory"`

	// GCInterval is how often the value-log garbage collector runs.
	GCInterval time.Duration `koanf:"gc_interval"`

	// Circuit breaker settings for persistence writes.
	BreakerMaxFailures   int           `koanf:"breaker_max_failures"`
	BreakerOpenTimeout   time.Duration `koanf:"breaker_open_timeout"`
	ApplyRetryAttempts   int           `koanf:"apply_retry_attempts"`
	ApplyRetryBackoff    time.Duration `koanf:"apply_retry_backoff"`
	StatsShardCount      int           `koanf:"stats_shard_count"`
	AnalyticsBucketLimit int           `koanf:"analytics_bucket_limit"`
}

// IngestConfig holds settings for the engagement event pipeline.
type IngestConfig struct {
	// MinViewSeconds is the minimum accumulated watch time before a
	// left-swipe emits a view event.
	MinViewSeconds float64 `koanf:"min_view_seconds"`

	// WatchdogInterval is how often the view watchdog scans for views
	// with no terminating signal.
	WatchdogInterval time.Duration `koanf:"watchdog_interval"`

	// ViewFinalizeAfter is how long a view may sit without progress
	// before the watchdog finalizes it with last-known watch time.
	ViewFinalizeAfter time.Duration `koanf:"view_finalize_after"`

	// RouterRetryCount and RouterRetryInterval configure the Watermill
	// router retry middleware for the stats consumer.
	RouterRetryCount    int           `koanf:"router_retry_count"`
	RouterRetryInterval time.Duration `koanf:"router_retry_interval"`
	RouterCloseTimeout  time.Duration `koanf:"router_close_timeout"`

	// DedupTTL bounds how long an event ID is remembered for replay
	// suppression.
	DedupTTL time.Duration `koanf:"dedup_ttl"`
	DedupMax int           `koanf:"dedup_max"`
}

// RankingConfig holds settings for the ranking index refresher.
type RankingConfig struct {
	// RefreshInterval is the sanctioned staleness window: how often the
	// materialized boards are rebuilt from stats snapshots.
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	// ViralThreshold is the minimum viral score for viralTopK membership.
	ViralThreshold float64 `koanf:"viral_threshold"`

	// MaxBoardSize caps the number of entries kept per scope board
	// (0 = unlimited).
	MaxBoardSize int `koanf:"max_board_size"`

	// PersistMaterializations writes each refreshed board to badger
	// keyed by (scope, epoch).
	PersistMaterializations bool `koanf:"persist_materializations"`
}

// FeedConfig holds settings for the feed assembler.
type FeedConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`

	// CandidateMultiplier controls how many ranking entries are pulled
	// per interest tag before filtering (limit * multiplier).
	CandidateMultiplier int `koanf:"candidate_multiplier"`

	// ChannelCacheTTL bounds the creator-channel response cache.
	ChannelCacheTTL time.Duration `koanf:"channel_cache_ttl"`
}

// SessionConfig holds settings for swipe session management.
type SessionConfig struct {
	// GracePeriod is how long a disconnected session's cursor is retained
	// so a quick reconnect resumes rather than restarts.
	GracePeriod time.Duration `koanf:"grace_period"`

	// CursorTTL is the badger TTL for persisted cursors.
	CursorTTL time.Duration `koanf:"cursor_ttl"`

	// ExcludeSetMax bounds the per-session seen-video set (FIFO eviction).
	ExcludeSetMax int `koanf:"exclude_set_max"`

	// ReapInterval is how often idle sessions past the grace period are
	// discarded.
	ReapInterval time.Duration `koanf:"reap_interval"`

	// SwipesPerSecond rate-limits swipes per session (x/time rate.Limiter).
	SwipesPerSecond float64 `koanf:"swipes_per_second"`
	SwipeBurst      int     `koanf:"swipe_burst"`
}

// APIConfig holds API surface settings.
type APIConfig struct {
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("store.path is required unless store.in_memory is set")
	}
	if c.Store.StatsShardCount < 1 {
		return fmt.Errorf("store.stats_shard_count must be >= 1, got %d", c.Store.StatsShardCount)
	}
	if c.Ranking.RefreshInterval <= 0 {
		return fmt.Errorf("ranking.refresh_interval must be positive, got %s", c.Ranking.RefreshInterval)
	}
	if c.Ranking.ViralThreshold < 0 {
		return fmt.Errorf("ranking.viral_threshold must be >= 0, got %f", c.Ranking.ViralThreshold)
	}
	if c.Feed.DefaultPageSize < 1 || c.Feed.DefaultPageSize > c.Feed.MaxPageSize {
		return fmt.Errorf("feed.default_page_size must be in [1, max_page_size], got %d", c.Feed.DefaultPageSize)
	}
	if c.Session.ExcludeSetMax < 1 {
		return fmt.Errorf("session.exclude_set_max must be >= 1, got %d", c.Session.ExcludeSetMax)
	}
	if c.Session.GracePeriod > c.Session.CursorTTL {
		return fmt.Errorf("session.grace_period (%s) cannot exceed session.cursor_ttl (%s)",
			c.Session.GracePeriod, c.Session.CursorTTL)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
