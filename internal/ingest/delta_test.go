// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package ingest

import (
	"testing"
	"time"

	"github.com/reelpulse/reelpulse/internal/models"
)

func TestDeltaFor(t *testing.T) {
	occurredAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		event models.EngagementEvent
		want  models.StatsDelta
	}{
		{
			name: "view with watch sample",
			event: models.EngagementEvent{
				EventType: models.EventView, WatchTimeSeconds: 12.5,
				Country: "US", Device: "ios", OccurredAt: occurredAt,
			},
			want: models.StatsDelta{
				Views: 1, WatchTimeSeconds: 12.5, HasWatchSample: true,
				Country: "US", Device: "ios", OccurredAt: occurredAt,
			},
		},
		{
			name: "view without watch sample",
			event: models.EngagementEvent{
				EventType: models.EventView, OccurredAt: occurredAt,
			},
			want: models.StatsDelta{Views: 1, OccurredAt: occurredAt},
		},
		{
			name: "net-new like",
			event: models.EngagementEvent{
				EventType: models.EventLike, NetNewLike: true, OccurredAt: occurredAt,
			},
			want: models.StatsDelta{Likes: 1, OccurredAt: occurredAt},
		},
		{
			name: "duplicate like moves nothing",
			event: models.EngagementEvent{
				EventType: models.EventLike, NetNewLike: false, OccurredAt: occurredAt,
			},
			want: models.StatsDelta{OccurredAt: occurredAt},
		},
		{
			name:  "unlike decrements",
			event: models.EngagementEvent{EventType: models.EventUnlike, OccurredAt: occurredAt},
			want:  models.StatsDelta{Likes: -1, OccurredAt: occurredAt},
		},
		{
			name:  "comment",
			event: models.EngagementEvent{EventType: models.EventComment, OccurredAt: occurredAt},
			want:  models.StatsDelta{Comments: 1, OccurredAt: occurredAt},
		},
		{
			name:  "share",
			event: models.EngagementEvent{EventType: models.EventShare, OccurredAt: occurredAt},
			want:  models.StatsDelta{Shares: 1, OccurredAt: occurredAt},
		},
		{
			name:  "save",
			event: models.EngagementEvent{EventType: models.EventSave, OccurredAt: occurredAt},
			want:  models.StatsDelta{Saves: 1, OccurredAt: occurredAt},
		},
		{
			name:  "unsave decrements",
			event: models.EngagementEvent{EventType: models.EventUnsave, OccurredAt: occurredAt},
			want:  models.StatsDelta{Saves: -1, OccurredAt: occurredAt},
		},
		{
			name: "swipe moves nothing",
			event: models.EngagementEvent{
				EventType: models.EventSwipe, SwipeDirection: models.SwipeLeft,
				WatchTimeSeconds: 10, OccurredAt: occurredAt,
			},
			want: models.StatsDelta{OccurredAt: occurredAt},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeltaFor(&tt.event)
			if *got != tt.want {
				t.Errorf("DeltaFor = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestDeltaFor_ZeroDeltas(t *testing.T) {
	swipe := DeltaFor(&models.EngagementEvent{EventType: models.EventSwipe})
	if !swipe.IsZero() {
		t.Error("swipe delta should be zero")
	}
	dupLike := DeltaFor(&models.EngagementEvent{EventType: models.EventLike})
	if !dupLike.IsZero() {
		t.Error("duplicate like delta should be zero")
	}
}
