// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

// Package ranking maintains the materialized leaderboards: a periodic
// refresher sweeps stats snapshots, recomputes scores as-of the sweep
// instant, and atomically swaps the boards the read paths serve from.
// Readers between refreshes see the previous materialization; staleness
// is bounded by the refresh interval.
package ranking

import (
	"sort"
	"time"

	"github.com/reelpulse/reelpulse/internal/models"
	"github.com/reelpulse/reelpulse/internal/scoring"
)

// Board scope keys.
const (
	ScopeTrending = "trending"
	ScopeViral    = "viral"

	categoryScopePrefix = "category:"
)

// ScopeCategory returns the board scope key for a category.
func ScopeCategory(category string) string {
	return categoryScopePrefix + category
}

// summarize projects a stats snapshot into a board entry carrying the
// scores computed for this sweep.
func summarize(s *models.VideoStats, scores scoring.Scores) models.VideoSummary {
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
		TrendingScore: scores.Trending,
		ViralScore:    scores.Viral,
	}
}

// buildBoards materializes every board scope from a stats sweep. All
// scores are computed against the same instant so entries within one
// materialization are mutually comparable.
func buildBoards(snaps []*models.VideoStats, now time.Time, viralThreshold float64, maxBoard int) map[string][]models.VideoSummary {
	trending := make([]models.VideoSummary, 0, len(snaps))
	var viral []models.VideoSummary
	byCategory := make(map[string][]models.VideoSummary)

	for _, s := range snaps {
		scores := scoring.Score(s, now)
		entry := summarize(s, scores)

		trending = append(trending, entry)
		if s.Category != "" {
			byCategory[s.Category] = append(byCategory[s.Category], entry)
		}
		if scores.Viral >= viralThreshold {
			viral = append(viral, entry)
		}
	}

	sortByTrending(trending)
	sortByViral(viral)

	boards := map[string][]models.VideoSummary{
		ScopeTrending: truncate(trending, maxBoard),
		ScopeViral:    truncate(viral, maxBoard),
	}
	for cat, entries := range byCategory {
		sortByTrending(entries)
		boards[ScopeCategory(cat)] = truncate(entries, maxBoard)
	}
	return boards
}

// trendingBefore reports whether a precedes b in trending order:
// trending score descending, ties broken by more recent createdAt, then
// video ID for determinism.
func trendingBefore(a, b models.VideoSummary) bool {
	if a.TrendingScore != b.TrendingScore {
		return a.TrendingScore > b.TrendingScore
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.VideoID < b.VideoID
}

// viralBefore reports whether a precedes b in viral order: viral score
// descending with the same recency tie-break as trending.
func viralBefore(a, b models.VideoSummary) bool {
	if a.ViralScore != b.ViralScore {
		return a.ViralScore > b.ViralScore
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.VideoID < b.VideoID
}

func sortByTrending(entries []models.VideoSummary) {
	sort.SliceStable(entries, func(i, j int) bool {
		return trendingBefore(entries[i], entries[j])
	})
}

func sortByViral(entries []models.VideoSummary) {
	sort.SliceStable(entries, func(i, j int) bool {
		return viralBefore(entries[i], entries[j])
	})
}

// truncate caps a board at the configured maximum (0 = unlimited).
func truncate(entries []models.VideoSummary, max int) []models.VideoSummary {
	if max > 0 && len(entries) > max {
		return entries[:max]
	}
	return entries
}
