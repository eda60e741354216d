// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/reelpulse/reelpulse/internal/logging"
	"github.com/reelpulse/reelpulse/internal/metrics"
	"github.com/reelpulse/reelpulse/internal/models"
)

// statsKeyPrefix namespaces stats records in badger.
const statsKeyPrefix = "stats:"

// ErrPersistUnavailable is returned while the circuit breaker is open.
var ErrPersistUnavailable = errors.New("stats persistence unavailable")

// BreakerConfig configures the persistence circuit breaker.
type BreakerConfig struct {
	// MaxFailures trips the breaker after this many consecutive failures.
	MaxFailures int

	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

// BadgerPersister stores stats records in BadgerDB behind a circuit
// breaker. When badger misbehaves the breaker opens and writes fail fast
// with ErrPersistUnavailable instead of piling up.
type BadgerPersister struct {
	db      *badger.DB
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewBadgerPersister creates a persister on an open badger handle.
func NewBadgerPersister(db *badger.DB, cfg BreakerConfig) *BadgerPersister {
	if cfg.MaxFailures < 1 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 15 * time.Second
	}

	settings := gobreaker.Settings{
		Name:    "stats-persist",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.MaxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Persistence circuit breaker state change")
			if to == gobreaker.StateOpen {
				metrics.BreakerState.Set(1)
			} else {
				metrics.BreakerState.Set(0)
			}
		},
	}

	return &BadgerPersister{
		db:      db,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// Save writes one stats record.
func (p *BadgerPersister) Save(s *models.VideoStats) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte(statsKeyPrefix+s.VideoID), data)
		})
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrPersistUnavailable, err)
	}
	return err
}

// Delete removes one stats record.
func (p *BadgerPersister) Delete(videoID string) error {
	_, err := p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.db.Update(func(txn *badger.Txn) error {
			return txn.Delete([]byte(statsKeyPrefix + videoID))
		})
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrPersistUnavailable, err)
	}
	return err
}

// LoadAll scans every persisted stats record. Called once at startup.
func (p *BadgerPersister) LoadAll(ctx context.Context) ([]*models.VideoStats, error) {
	var records []*models.VideoStats

	err := p.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(statsKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				var rec models.VideoStats
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("unmarshal stats record: %w", err)
				}
				records = append(records, &rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}
