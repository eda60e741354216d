// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package session

import (
	"context"
	"time"

	"github.com/reelpulse/reelpulse/internal/logging"
)

// Reaper periodically drops sessions idle past the grace period. Runs
// as a service under the supervision tree.
type Reaper struct {
	controller *Controller
	interval   time.Duration
}

// NewReaper creates a reaper for a controller.
func NewReaper(controller *Controller, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{controller: controller, interval: interval}
}

// Serve runs the reap loop until the context is cancelled.
func (r *Reaper) Serve(ctx context.Context) error {
	logging.Info().Dur("interval", r.interval).Msg("Session reaper started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Session reaper stopped")
			return ctx.Err()
		case now := <-ticker.C:
			if n := r.controller.reap(now.UTC()); n > 0 {
				logging.Debug().Int("reaped", n).Msg("Idle swipe sessions reaped")
			}
		}
	}
}

// String implements the suture service name.
func (r *Reaper) String() string {
	return "session-reaper"
}
