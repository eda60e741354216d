// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package models

import (
	"time"
)

// VideoSummary is the per-video projection returned by feed and ranking
// listings. Scores are as-of the ranking materialization that produced
// the listing, not live values.
type VideoSummary struct {
	VideoID   string    `json:"video_id"`
	CreatorID string    `json:"creator_id"`
	Title     string    `json:"title,omitempty"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`

	TrendingScore float64 `json:"trending_score"`
	ViralScore    float64 `json:"viral_score"`
}

// FeedPage is an ordered page of summaries plus the page-full heuristic.
//
// HasMore is true iff the returned page size equals the requested limit.
// This is the heuristic the product shipped with: it can report a false
// positive when the last page lines up exactly with the limit, and it is
// never verified against a true remaining count. Preserved as-is.
type FeedPage struct {
	Videos  []VideoSummary `json:"videos"`
	Limit   int            `json:"limit"`
	Skip    int            `json:"skip"`
	HasMore bool           `json:"has_more"`
}

// NewFeedPage wraps a result slice with the page-full hasMore heuristic.
func NewFeedPage(videos []VideoSummary, limit, skip int) FeedPage {
	return FeedPage{
		Videos:  videos,
		Limit:   limit,
		Skip:    skip,
		HasMore: len(videos) == limit,
	}
}

// FeedCursor tracks a user's linear traversal through a materialized
// feed sequence within one swipe session.
type FeedCursor struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`

	// Sequence is the ordered list of video IDs materialized so far.
	Sequence []string `json:"sequence"`

	// Position is a 0-based index into Sequence. Always within
	// [0, len(Sequence)].
	Position int `json:"position"`

	// ExcludeSet holds recently seen video IDs in FIFO order, bounded by
	// the session config; oldest entries are evicted first.
	ExcludeSet []string `json:"exclude_set"`

	// LastSeq is the highest client sequence number applied. Swipes with
	// seq <= LastSeq are ignored as out-of-order duplicates.
	LastSeq uint64 `json:"last_seq"`

	// LastActiveAt drives grace-period reaping.
	LastActiveAt time.Time `json:"last_active_at"`
}

// Current returns the video ID at the cursor position, or "" when the
// position sits past the end of the materialized sequence.
func (c *FeedCursor) Current() string {
	if c.Position < 0 || c.Position >= len(c.Sequence) {
		return ""
	}
	return c.Sequence[c.Position]
}

// Excluded reports whether the video is in the exclude set.
func (c *FeedCursor) Excluded(videoID string) bool {
	for _, id := range c.ExcludeSet {
		if id == videoID {
			return true
		}
	}
	return false
}

// AddExcluded appends a video ID to the exclude set, evicting the oldest
// entry when the bound is reached.
func (c *FeedCursor) AddExcluded(videoID string, max int) {
	if c.Excluded(videoID) {
		return
	}
	c.ExcludeSet = append(c.ExcludeSet, videoID)
	if max > 0 && len(c.ExcludeSet) > max {
		c.ExcludeSet = c.ExcludeSet[len(c.ExcludeSet)-max:]
	}
}

// CreatorProfile is the external collaborator's projection of a creator,
// returned with swipe-down channel data.
type CreatorProfile struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	IsVerified  bool   `json:"is_verified"`
	Followers   int64  `json:"followers"`
}

// CreatorChannel is the swipe-down payload: the creator plus their other
// public completed videos sorted by views, and the follow-status flag.
type CreatorChannel struct {
	Creator     CreatorProfile `json:"creator"`
	Videos      []VideoSummary `json:"videos"`
	IsFollowing bool           `json:"is_following"`
}

// SearchSort selects the ordering of search results.
type SearchSort string

// Search sort keys.
const (
	SortViews     SearchSort = "views"
	SortLikes     SearchSort = "likes"
	SortRecent    SearchSort = "recent"
	SortRelevance SearchSort = "relevance"
)

// Valid reports whether s is a known sort key.
func (s SearchSort) Valid() bool {
	switch s {
	case SortViews, SortLikes, SortRecent, SortRelevance:
		return true
	}
	return false
}

// DurationBucket selects a search duration filter.
type DurationBucket string

// Duration buckets: short < 60s, 60s <= medium < 180s, long >= 180s.
const (
	DurationAny    DurationBucket = ""
	DurationShort  DurationBucket = "short"
	DurationMedium DurationBucket = "medium"
	DurationLong   DurationBucket = "long"
)

// Contains reports whether a video duration falls inside the bucket.
func (b DurationBucket) Contains(seconds float64) bool {
	switch b {
	case DurationShort:
		return seconds < 60
	case DurationMedium:
		return seconds >= 60 && seconds < 180
	case DurationLong:
		return seconds >= 180
	default:
		return true
	}
}
