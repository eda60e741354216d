// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package models

import (
	"time"
)

// VideoStats holds the per-video counters, rolling averages, and
// analytics buckets. One record exists per published video; the stats
// store is its only writer. The derived scores are pure functions of the
// counters and current time and are never the source of truth.
type VideoStats struct {
	VideoID   string    `json:"video_id"`
	CreatorID string    `json:"creator_id"`
	Title     string    `json:"title,omitempty"`
	Category  string    `json:"category,omitempty"`
	Hashtags  []string  `json:"hashtags,omitempty"`
	CreatedAt time.Time `json:"created_at"` // publish time, immutable

	// DurationSeconds is the video length, used for completion rate.
	DurationSeconds float64 `json:"duration_seconds"`

	// Raw counters. Non-negative; decrements clamp at zero.
	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
	Saves    int64 `json:"saves"`

	// Rolling averages over view samples.
	AverageWatchTimeSeconds float64 `json:"average_watch_time_seconds"`
	CompletionRate          float64 `json:"completion_rate"` // 0-100

	// EngagementRate = 100 * (likes + comments + shares) / max(views, 1),
	// recomputed on every mutation.
	EngagementRate float64 `json:"engagement_rate"` // 0-100

	// Derived scores. Recomputed on read by the scoring policy; the
	// persisted values are a convenience snapshot only.
	TrendingScore float64 `json:"trending_score"`
	ViralScore    float64 `json:"viral_score"`

	// LastEngagementAt is the timestamp of the last counter mutation.
	LastEngagementAt time.Time `json:"last_engagement_at"`

	// Analytics buckets: view counts keyed by dimension value.
	ViewsByCountry map[string]int64 `json:"views_by_country,omitempty"`
	ViewsByDevice  map[string]int64 `json:"views_by_device,omitempty"`
	ViewsByHour    map[int]int64    `json:"views_by_hour,omitempty"`
}

// Clone returns a deep copy. The stats store hands out clones so callers
// never hold a live reference into mutable state.
func (s *VideoStats) Clone() *VideoStats {
	cp := *s

	if s.Hashtags != nil {
		cp.Hashtags = make([]string, len(s.Hashtags))
		copy(cp.Hashtags, s.Hashtags)
	}
	if s.ViewsByCountry != nil {
		cp.ViewsByCountry = make(map[string]int64, len(s.ViewsByCountry))
		for k, v := range s.ViewsByCountry {
			cp.ViewsByCountry[k] = v
		}
	}
	if s.ViewsByDevice != nil {
		cp.ViewsByDevice = make(map[string]int64, len(s.ViewsByDevice))
		for k, v := range s.ViewsByDevice {
			cp.ViewsByDevice[k] = v
		}
	}
	if s.ViewsByHour != nil {
		cp.ViewsByHour = make(map[int]int64, len(s.ViewsByHour))
		for k, v := range s.ViewsByHour {
			cp.ViewsByHour[k] = v
		}
	}

	return &cp
}

// HasHashtag reports whether the video carries the given hashtag.
func (s *VideoStats) HasHashtag(tag string) bool {
	for _, h := range s.Hashtags {
		if h == tag {
			return true
		}
	}
	return false
}

// StatsDelta describes a single mutation to a video's counters. Deltas
// are produced by the ingest layer from validated events and applied
// atomically per video by the stats store.
type StatsDelta struct {
	Views    int64 `json:"views,omitempty"`
	Likes    int64 `json:"likes,omitempty"`
	Comments int64 `json:"comments,omitempty"`
	Shares   int64 `json:"shares,omitempty"`
	Saves    int64 `json:"saves,omitempty"`

	// WatchTimeSeconds is the watch-time sample accompanying a view
	// increment. Only consumed when HasWatchSample is true.
	WatchTimeSeconds float64 `json:"watch_time_seconds,omitempty"`
	HasWatchSample   bool    `json:"has_watch_sample,omitempty"`

	// Analytics dimensions recorded with a view.
	Country string `json:"country,omitempty"`
	Device  string `json:"device,omitempty"`

	// OccurredAt stamps LastEngagementAt and selects the hour bucket.
	OccurredAt time.Time `json:"occurred_at"`
}

// IsZero reports whether the delta mutates nothing.
func (d *StatsDelta) IsZero() bool {
	return d.Views == 0 && d.Likes == 0 && d.Comments == 0 &&
		d.Shares == 0 && d.Saves == 0 && !d.HasWatchSample
}

// VideoRegistration is the payload of the video-publish hook: the
// metadata needed to create a stats record once processing completes.
type VideoRegistration struct {
	VideoID         string    `json:"video_id" validate:"required"`
	CreatorID       string    `json:"creator_id" validate:"required"`
	Title           string    `json:"title"`
	Category        string    `json:"category" validate:"required"`
	Hashtags        []string  `json:"hashtags"`
	DurationSeconds float64   `json:"duration_seconds" validate:"gt=0"`
	PublishedAt     time.Time `json:"published_at"`
}
