// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

// Package feed assembles video listings for clients: the personalized
// swipe feed, the ranking listings, hashtag and search projections, and
// the creator channel. All listings read materialized boards or stats
// snapshots, never live counters.
package feed

import (
	"context"
	"sort"
	"time"

	"github.com/reelpulse/reelpulse/internal/cache"
	"github.com/reelpulse/reelpulse/internal/logging"
	"github.com/reelpulse/reelpulse/internal/metrics"
	"github.com/reelpulse/reelpulse/internal/models"
	"github.com/reelpulse/reelpulse/internal/ranking"
)

// UserDirectory resolves user attributes from the account system.
type UserDirectory interface {
	// InterestsOf returns the user's interest categories, possibly empty.
	InterestsOf(ctx context.Context, userID string) ([]string, error)
}

// VisibilityGate answers whether a video may be served. Moderation and
// processing state live outside the engagement core; when the gate
// cannot answer it must answer false.
type VisibilityGate interface {
	IsVisible(ctx context.Context, videoID string) bool
}

// CreatorDirectory resolves creator profiles and follow edges.
type CreatorDirectory interface {
	Profile(ctx context.Context, creatorID string) (*models.CreatorProfile, error)
	IsFollowing(ctx context.Context, userID, creatorID string) (bool, error)
}

// SnapshotSource supplies stats snapshots for listings that are not
// served from materialized boards. Implemented by the stats store.
type SnapshotSource interface {
	Snapshots() []*models.VideoStats
}

// Config configures the assembler.
type Config struct {
	DefaultPageSize int
	MaxPageSize     int

	// CandidateMultiplier scales how many board entries are pulled per
	// interest before filtering.
	CandidateMultiplier int

	// ChannelCacheTTL bounds the creator-channel cache.
	ChannelCacheTTL time.Duration
}

// Assembler builds feed pages.
type Assembler struct {
	index        *ranking.Index
	snaps        SnapshotSource
	users        UserDirectory
	visibility   VisibilityGate
	creators     CreatorDirectory
	channelCache *cache.LRU[*models.CreatorChannel]
	cfg          Config
}

// NewAssembler creates an assembler.
func NewAssembler(index *ranking.Index, snaps SnapshotSource, users UserDirectory,
	visibility VisibilityGate, creators CreatorDirectory, cfg Config) *Assembler {

	if cfg.DefaultPageSize < 1 {
		cfg.DefaultPageSize = 10
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	if cfg.CandidateMultiplier < 1 {
		cfg.CandidateMultiplier = 3
	}
	if cfg.ChannelCacheTTL <= 0 {
		cfg.ChannelCacheTTL = 10 * time.Second
	}

	return &Assembler{
		index:        index,
		snaps:        snaps,
		users:        users,
		visibility:   visibility,
		creators:     creators,
		channelCache: cache.NewLRU[*models.CreatorChannel](512, cfg.ChannelCacheTTL),
		cfg:          cfg,
	}
}

// ClampPage normalizes a limit/skip pair against the configured bounds.
func (a *Assembler) ClampPage(limit, skip int) (int, int) {
	if limit < 1 {
		limit = a.cfg.DefaultPageSize
	}
	if limit > a.cfg.MaxPageSize {
		limit = a.cfg.MaxPageSize
	}
	if skip < 0 {
		skip = 0
	}
	return limit, skip
}

// Personalized assembles the swipe feed for a user: candidates from the
// per-interest boards (global trending when the user has no interests),
// minus the user's own videos, the session's recently-seen set, and
// anything the visibility gate refuses.
func (a *Assembler) Personalized(ctx context.Context, userID string, exclude []string, limit, skip int) (models.FeedPage, error) {
	start := time.Now()
	defer func() {
		metrics.FeedRequestDuration.Observe(time.Since(start).Seconds())
	}()

	limit, skip = a.ClampPage(limit, skip)

	interests, err := a.users.InterestsOf(ctx, userID)
	if err != nil {
		// Degrade to the global board rather than failing the feed.
		logging.CtxErr(ctx, err).Str("user_id", userID).Msg("Interest lookup failed, serving global trending")
		interests = nil
	}

	pull := (skip + limit) * a.cfg.CandidateMultiplier

	var candidates []models.VideoSummary
	if len(interests) == 0 {
		candidates = a.index.Trending(0, pull)
	} else {
		for _, interest := range interests {
			candidates = append(candidates, a.index.Category(interest, 0, pull)...)
		}
		// Interests with thin boards leave the pool short; backfill from
		// the global board so early adopters still get a full page.
		if len(candidates) < pull {
			candidates = append(candidates, a.index.Trending(0, pull)...)
		}
	}

	excluded := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	seen := make(map[string]struct{}, len(candidates))
	merged := candidates[:0]
	for _, c := range candidates {
		if _, dup := seen[c.VideoID]; dup {
			continue
		}
		seen[c.VideoID] = struct{}{}

		if c.CreatorID == userID {
			continue
		}
		if _, drop := excluded[c.VideoID]; drop {
			continue
		}
		if !a.visibility.IsVisible(ctx, c.VideoID) {
			continue
		}
		merged = append(merged, c)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].TrendingScore > merged[j].TrendingScore
	})

	return models.NewFeedPage(page(merged, skip, limit), limit, skip), nil
}

// Channel builds the swipe-down payload for a creator: profile plus
// their visible videos sorted by views. The video list is cached for a
// few seconds per creator; the follow flag is resolved per request.
func (a *Assembler) Channel(ctx context.Context, userID, creatorID string) (*models.CreatorChannel, error) {
	if cached, ok := a.channelCache.Get(creatorID); ok {
		return a.withFollowFlag(ctx, userID, cached), nil
	}

	profile, err := a.creators.Profile(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	var videos []models.VideoSummary
	for _, s := range a.snaps.Snapshots() {
		if s.CreatorID != creatorID {
			continue
		}
		if !a.visibility.IsVisible(ctx, s.VideoID) {
			continue
		}
		videos = append(videos, summaryFromStats(s))
	}
	sort.SliceStable(videos, func(i, j int) bool {
		return videos[i].Views > videos[j].Views
	})

	channel := &models.CreatorChannel{Creator: *profile, Videos: videos}
	a.channelCache.Add(creatorID, channel)

	return a.withFollowFlag(ctx, userID, channel), nil
}

// InvalidateChannel drops a creator's cached channel. Called from the
// video delete cascade.
func (a *Assembler) InvalidateChannel(creatorID string) {
	a.channelCache.Remove(creatorID)
}

// withFollowFlag copies the cached channel and stamps the per-user
// follow state onto the copy.
func (a *Assembler) withFollowFlag(ctx context.Context, userID string, channel *models.CreatorChannel) *models.CreatorChannel {
	out := *channel
	following, err := a.creators.IsFollowing(ctx, userID, channel.Creator.UserID)
	if err != nil {
		logging.CtxErr(ctx, err).Str("creator_id", channel.Creator.UserID).Msg("Follow lookup failed")
		following = false
	}
	out.IsFollowing = following
	return &out
}

// page slices [skip, skip+limit) out of an ordered result set.
func page(entries []models.VideoSummary, skip, limit int) []models.VideoSummary {
	if skip >= len(entries) {
		return []models.VideoSummary{}
	}
	end := skip + limit
	if end > len(entries) {
		end = len(entries)
	}
	out := make([]models.VideoSummary, end-skip)
	copy(out, entries[skip:end])
	return out
}

// summaryFromStats projects a stats snapshot using its stored scores.
func summaryFromStats(s *models.VideoStats) models.VideoSummary {
	return models.VideoSummary{
		VideoID:       s.VideoID,
		CreatorID:     s.CreatorID,
		Title:         s.Title,
		Category:      s.Category,
		CreatedAt:     s.CreatedAt,
		Views:         s.Views,
		Likes:         s.Likes,
		Comments:      s.Comments,
		Shares:        s.Shares,
		TrendingScore: s.TrendingScore,
		ViralScore:    s.ViralScore,
	}
}
