// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package ingest

import (
	"context"
	"time"

	"github.com/reelpulse/reelpulse/internal/logging"
)

// Watchdog finalizes views whose terminating left swipe never arrived:
// a crashed client or dropped connection leaves the last swipe heartbeat
// as the best record of how long the video was actually watched.
type Watchdog struct {
	ingestor      *Ingestor
	interval      time.Duration
	finalizeAfter time.Duration
}

// NewWatchdog creates a watchdog over an ingestor's pending views.
func NewWatchdog(ingestor *Ingestor, interval, finalizeAfter time.Duration) *Watchdog {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if finalizeAfter <= 0 {
		finalizeAfter = 30 * time.Second
	}
	return &Watchdog{
		ingestor:      ingestor,
		interval:      interval,
		finalizeAfter: finalizeAfter,
	}
}

// Serve runs the finalization loop until the context is cancelled.
func (w *Watchdog) Serve(ctx context.Context) error {
	logging.Info().
		Dur("interval", w.interval).
		Dur("finalize_after", w.finalizeAfter).
		Msg("View watchdog started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("View watchdog stopped")
			return ctx.Err()
		case now := <-ticker.C:
			cutoff := now.UTC().Add(-w.finalizeAfter)
			if n := w.ingestor.finalizeStale(cutoff); n > 0 {
				logging.Debug().Int("finalized", n).Msg("Stale views finalized from last-known progress")
			}
		}
	}
}

// String implements the suture service name.
func (w *Watchdog) String() string {
	return "view-watchdog"
}
