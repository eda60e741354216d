// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package ranking

import (
	"context"
	"time"

	"github.com/reelpulse/reelpulse/internal/logging"
	"github.com/reelpulse/reelpulse/internal/metrics"
	"github.com/reelpulse/reelpulse/internal/models"
)

// SnapshotSource supplies the stats sweep a refresh materializes from.
// Implemented by the stats store.
type SnapshotSource interface {
	Snapshots() []*models.VideoStats
}

// MaterializationStore persists refreshed boards. Implemented by the
// badger board store; nil disables persistence.
type MaterializationStore interface {
	SaveBoards(epoch int64, boards map[string][]models.VideoSummary) error
}

// RefreshListener is notified after each successful refresh. The live
// ranking hub uses it to push epoch announcements to subscribers.
type RefreshListener func(epoch int64, builtAt time.Time)

// RefresherConfig configures the refresh loop.
type RefresherConfig struct {
	Interval       time.Duration
	ViralThreshold float64
	MaxBoardSize   int
}

// Refresher rebuilds the materialized boards on a fixed interval. It
// runs as a service under the supervision tree.
type Refresher struct {
	source    SnapshotSource
	index     *Index
	cfg       RefresherConfig
	persist   MaterializationStore
	listeners []RefreshListener
}

// NewRefresher creates a refresher. persist may be nil.
func NewRefresher(source SnapshotSource, index *Index, cfg RefresherConfig, persist MaterializationStore) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	return &Refresher{
		source:  source,
		index:   index,
		cfg:     cfg,
		persist: persist,
	}
}

// OnRefresh registers a listener. Must be called before Serve starts.
func (r *Refresher) OnRefresh(fn RefreshListener) {
	r.listeners = append(r.listeners, fn)
}

// Serve runs the refresh loop until the context is cancelled. An initial
// refresh runs immediately so the boards are populated before the first
// tick.
func (r *Refresher) Serve(ctx context.Context) error {
	logging.Info().
		Dur("interval", r.cfg.Interval).
		Float64("viral_threshold", r.cfg.ViralThreshold).
		Msg("Ranking refresher started")

	r.RefreshNow(time.Now().UTC())

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Ranking refresher stopped")
			return ctx.Err()
		case now := <-ticker.C:
			r.RefreshNow(now.UTC())
		}
	}
}

// String implements the suture service name.
func (r *Refresher) String() string {
	return "ranking-refresher"
}

// RefreshNow performs one materialization sweep: snapshot the stats
// store, rebuild every board against a single instant, swap the index,
// then persist and notify. Persistence failure does not roll back the
// in-memory swap; the durable copy is a warm-start aid, not the source
// of truth.
func (r *Refresher) RefreshNow(now time.Time) {
	start := time.Now()

	snaps := r.source.Snapshots()
	boards := buildBoards(snaps, now, r.cfg.ViralThreshold, r.cfg.MaxBoardSize)
	epoch := r.index.Install(boards, now)

	metrics.RecordRankingRefresh(epoch, time.Since(start))

	if r.persist != nil {
		if err := r.persist.SaveBoards(epoch, boards); err != nil {
			metrics.RankingRefreshFailures.Inc()
			logging.Err(err).Int64("epoch", epoch).Msg("Ranking board persistence failed")
		}
	}

	for _, fn := range r.listeners {
		fn(epoch, now)
	}

	logging.Debug().
		Int64("epoch", epoch).
		Int("videos", len(snaps)).
		Int("boards", len(boards)).
		Dur("took", time.Since(start)).
		Msg("Ranking boards refreshed")
}
