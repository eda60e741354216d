// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package ingest

import (
	"github.com/reelpulse/reelpulse/internal/models"
)

// DeltaFor maps a validated engagement event onto the counter delta it
// produces. Swipe events and duplicate likes map to an empty delta:
// they carry session or analytics meaning but must not move counters.
func DeltaFor(event *models.EngagementEvent) *models.StatsDelta {
	delta := &models.StatsDelta{OccurredAt: event.OccurredAt}

	switch event.EventType {
	case models.EventView:
		delta.Views = 1
		delta.Country = event.Country
		delta.Device = event.Device
		if event.WatchTimeSeconds > 0 {
			delta.WatchTimeSeconds = event.WatchTimeSeconds
			delta.HasWatchSample = true
		}
	case models.EventLike:
		if event.NetNewLike {
			delta.Likes = 1
		}
	case models.EventUnlike:
		delta.Likes = -1
	case models.EventComment:
		delta.Comments = 1
	case models.EventShare:
		delta.Shares = 1
	case models.EventSave:
		delta.Saves = 1
	case models.EventUnsave:
		delta.Saves = -1
	case models.EventSwipe:
		// No counter movement.
	}

	return delta
}
