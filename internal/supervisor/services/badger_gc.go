// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package services

import (
	"context"
	"errors"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/reelpulse/reelpulse/internal/logging"
)

// BadgerGCService runs badger's value log garbage collection on a fixed
// interval. Badger never reclaims value log space on its own; skipping
// this grows the store unboundedly under sustained stats writes.
type BadgerGCService struct {
	db           *badger.DB
	interval     time.Duration
	discardRatio float64
}

// NewBadgerGCService creates the GC loop.
func NewBadgerGCService(db *badger.DB, interval time.Duration) *BadgerGCService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &BadgerGCService{db: db, interval: interval, discardRatio: 0.5}
}

// Serve implements suture.Service.
func (s *BadgerGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// One GC call rewrites at most one value log file; loop until
			// there is nothing left to reclaim.
			for {
				err := s.db.RunValueLogGC(s.discardRatio)
				if errors.Is(err, badger.ErrNoRewrite) {
					break
				}
				if err != nil {
					logging.Err(err).Msg("Badger value log GC failed")
					break
				}
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *BadgerGCService) String() string {
	return "badger-gc"
}
