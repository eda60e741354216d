// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

// Package stats owns per-video engagement counters and derived metrics.
//
// The store is the only writer of statistic state. Mutations for the
// same video serialize on a sharded lock table; mutations for different
// videos proceed in parallel. Every read and every apply returns an
// immutable deep copy, never a live handle.
package stats

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/reelpulse/reelpulse/internal/logging"
	"github.com/reelpulse/reelpulse/internal/metrics"
	"github.com/reelpulse/reelpulse/internal/models"
	"github.com/reelpulse/reelpulse/internal/scoring"
)

// Options configures a Store.
type Options struct {
	// ShardCount sizes the lock table. More shards means less false
	// sharing between unrelated videos.
	ShardCount int

	// RetryAttempts bounds persistence retries before ErrConflict.
	RetryAttempts int

	// RetryBackoff is the base backoff between persistence retries,
	// doubled each attempt.
	RetryBackoff time.Duration

	// AnalyticsBucketLimit caps the number of distinct keys per
	// analytics bucket map. Existing keys always increment; new keys
	// past the limit are dropped.
	AnalyticsBucketLimit int
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{
		ShardCount:           64,
		RetryAttempts:        3,
		RetryBackoff:         50 * time.Millisecond,
		AnalyticsBucketLimit: 256,
	}
}

// Persister is the durable backing store for stats records. Implemented
// by the badger persister; nil disables persistence (tests).
type Persister interface {
	LoadAll(ctx context.Context) ([]*models.VideoStats, error)
	Save(s *models.VideoStats) error
	Delete(videoID string) error
}

// shard holds one partition of the video map, guarded by its own mutex.
type shard struct {
	mu     sync.Mutex
	videos map[string]*models.VideoStats
}

func (sh *shard) lock()   { sh.mu.Lock() }
func (sh *shard) unlock() { sh.mu.Unlock() }

// Store is the per-video statistics owner.
type Store struct {
	shards  []*shard
	opts    Options
	persist Persister
}

// NewStore creates a Store with the given options. persist may be nil.
func NewStore(opts Options, persist Persister) *Store {
	if opts.ShardCount < 1 {
		opts.ShardCount = 1
	}
	shards := make([]*shard, opts.ShardCount)
	for i := range shards {
		shards[i] = &shard{videos: make(map[string]*models.VideoStats)}
	}
	return &Store{shards: shards, opts: opts, persist: persist}
}

// Restore loads all persisted stats records into memory. Called once at
// startup before the store is shared.
func (s *Store) Restore(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	records, err := s.persist.LoadAll(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		sh := s.shardFor(rec.VideoID)
		sh.videos[rec.VideoID] = rec
	}
	logging.Info().Int("videos", len(records)).Msg("Restored video stats from store")
	return nil
}

// shardFor maps a video ID onto its lock shard.
func (s *Store) shardFor(videoID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(videoID))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Create registers a stats record for a video whose processing has
// completed. Returns ErrAlreadyExists if a record is already present.
func (s *Store) Create(reg *models.VideoRegistration) (*models.VideoStats, error) {
	publishedAt := reg.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = time.Now().UTC()
	}

	rec := &models.VideoStats{
		VideoID:          reg.VideoID,
		CreatorID:        reg.CreatorID,
		Title:            reg.Title,
		Category:         reg.Category,
		Hashtags:         append([]string(nil), reg.Hashtags...),
		CreatedAt:        publishedAt,
		DurationSeconds:  reg.DurationSeconds,
		LastEngagementAt: publishedAt,
	}

	sh := s.shardFor(reg.VideoID)
	sh.lock()
	defer sh.unlock()

	if _, exists := sh.videos[reg.VideoID]; exists {
		return nil, ErrAlreadyExists
	}

	if err := s.persistWithRetry(rec); err != nil {
		return nil, err
	}

	sh.videos[reg.VideoID] = rec
	return rec.Clone(), nil
}

// Apply atomically applies a delta to a video's counters and returns an
// immutable snapshot of the resulting state.
//
// The read-modify-write serializes per video. Counters clamp at zero on
// decrement. Rolling averages follow A' = (A*n + x) / (n+1) where n is
// the sample count before this view. Returns ErrNotFound when the video
// was never registered, which callers must surface, not retry.
func (s *Store) Apply(videoID string, delta *models.StatsDelta) (*models.VideoStats, error) {
	start := time.Now()
	defer func() {
		metrics.StatsApplyDuration.Observe(time.Since(start).Seconds())
	}()

	sh := s.shardFor(videoID)
	sh.lock()
	defer sh.unlock()

	cur, ok := sh.videos[videoID]
	if !ok {
		return nil, ErrNotFound
	}

	// Mutate a copy so a failed persist leaves memory untouched and the
	// counters stay consistent with the durable record.
	next := cur.Clone()
	s.applyDelta(next, delta)

	if err := s.persistWithRetry(next); err != nil {
		return nil, err
	}

	sh.videos[videoID] = next
	return next.Clone(), nil
}

// applyDelta mutates next in place according to delta.
func (s *Store) applyDelta(next *models.VideoStats, delta *models.StatsDelta) {
	occurredAt := delta.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	// Rolling averages consume the sample before the view counter
	// moves: n is the number of samples already folded in.
	if delta.HasWatchSample {
		n := float64(next.Views)
		next.AverageWatchTimeSeconds = (next.AverageWatchTimeSeconds*n + delta.WatchTimeSeconds) / (n + 1)

		if next.DurationSeconds > 0 {
			completion := delta.WatchTimeSeconds / next.DurationSeconds
			if completion > 1 {
				completion = 1
			}
			next.CompletionRate = (next.CompletionRate*n + completion*100) / (n + 1)
		}
	}

	next.Views = clamp(next.Views + delta.Views)
	next.Likes = clamp(next.Likes + delta.Likes)
	next.Comments = clamp(next.Comments + delta.Comments)
	next.Shares = clamp(next.Shares + delta.Shares)
	next.Saves = clamp(next.Saves + delta.Saves)

	next.EngagementRate = scoring.EngagementRate(next.Views, next.Likes, next.Comments, next.Shares)

	if delta.Views > 0 {
		s.bumpBuckets(next, delta, occurredAt)
	}

	next.LastEngagementAt = occurredAt

	// Convenience snapshot of the derived scores; ranking recomputes
	// them from the counters at materialization time.
	scores := scoring.Score(next, occurredAt)
	next.TrendingScore = scores.Trending
	next.ViralScore = scores.Viral
}

// bumpBuckets updates the analytics bucket maps for a view.
func (s *Store) bumpBuckets(next *models.VideoStats, delta *models.StatsDelta, occurredAt time.Time) {
	if delta.Country != "" {
		if next.ViewsByCountry == nil {
			next.ViewsByCountry = make(map[string]int64)
		}
		if _, ok := next.ViewsByCountry[delta.Country]; ok || len(next.ViewsByCountry) < s.opts.AnalyticsBucketLimit {
			next.ViewsByCountry[delta.Country] += delta.Views
		}
	}
	if delta.Device != "" {
		if next.ViewsByDevice == nil {
			next.ViewsByDevice = make(map[string]int64)
		}
		if _, ok := next.ViewsByDevice[delta.Device]; ok || len(next.ViewsByDevice) < s.opts.AnalyticsBucketLimit {
			next.ViewsByDevice[delta.Device] += delta.Views
		}
	}
	if next.ViewsByHour == nil {
		next.ViewsByHour = make(map[int]int64)
	}
	next.ViewsByHour[occurredAt.UTC().Hour()] += delta.Views
}

// UpdateCategory reassigns a video's category and returns the updated
// snapshot. The caller cascades the move into the ranking index.
func (s *Store) UpdateCategory(videoID, category string) (*models.VideoStats, error) {
	sh := s.shardFor(videoID)
	sh.lock()
	defer sh.unlock()

	cur, ok := sh.videos[videoID]
	if !ok {
		return nil, ErrNotFound
	}

	next := cur.Clone()
	next.Category = category

	if err := s.persistWithRetry(next); err != nil {
		return nil, err
	}

	sh.videos[videoID] = next
	return next.Clone(), nil
}

// Read returns an immutable snapshot of a video's stats.
func (s *Store) Read(videoID string) (*models.VideoStats, error) {
	sh := s.shardFor(videoID)
	sh.lock()
	defer sh.unlock()

	cur, ok := sh.videos[videoID]
	if !ok {
		return nil, ErrNotFound
	}
	return cur.Clone(), nil
}

// Exists reports whether a stats record exists for the video.
func (s *Store) Exists(videoID string) bool {
	sh := s.shardFor(videoID)
	sh.lock()
	defer sh.unlock()

	_, ok := sh.videos[videoID]
	return ok
}

// Delete removes a video's stats record. The caller cascades the removal
// into the ranking index. Deleting an absent record is a no-op.
func (s *Store) Delete(videoID string) error {
	sh := s.shardFor(videoID)
	sh.lock()
	defer sh.unlock()

	if _, ok := sh.videos[videoID]; !ok {
		return nil
	}

	if s.persist != nil {
		if err := s.persist.Delete(videoID); err != nil {
			return err
		}
	}

	delete(sh.videos, videoID)
	return nil
}

// Snapshots returns immutable copies of every stats record. Each shard is
// locked only while its entries are cloned, so a sweep observes a mix of
// moments across videos but a consistent state within each one. That is
// the consistency the ranking refresher is specified to tolerate.
func (s *Store) Snapshots() []*models.VideoStats {
	var out []*models.VideoStats
	for _, sh := range s.shards {
		sh.lock()
		for _, rec := range sh.videos {
			out = append(out, rec.Clone())
		}
		sh.unlock()
	}
	return out
}

// Len returns the number of registered videos.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.lock()
		n += len(sh.videos)
		sh.unlock()
	}
	return n
}

// persistWithRetry writes a record through the persister with a bounded
// retry budget and doubling backoff, surfacing ErrConflict when the
// budget is exhausted.
func (s *Store) persistWithRetry(rec *models.VideoStats) error {
	if s.persist == nil {
		return nil
	}

	backoff := s.opts.RetryBackoff
	attempts := s.opts.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			metrics.StatsApplyRetries.Inc()
			time.Sleep(backoff)
			backoff *= 2
		}
		if err = s.persist.Save(rec); err == nil {
			return nil
		}
		if errors.Is(err, ErrPersistUnavailable) {
			// Breaker is open; more attempts inside the window are futile.
			break
		}
	}

	metrics.StatsPersistErrors.Inc()
	logging.Err(err).Str("video_id", rec.VideoID).Msg("Stats persistence failed past retry budget")
	return ErrConflict
}

// clamp floors a counter at zero.
func clamp(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
