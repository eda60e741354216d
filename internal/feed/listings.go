// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package feed

import (
	"sort"
	"strings"
	"time"

	"github.com/reelpulse/reelpulse/internal/models"
	"github.com/reelpulse/reelpulse/internal/scoring"
)

// Trending returns a page of the global trending board.
func (a *Assembler) Trending(limit, skip int) models.FeedPage {
	limit, skip = a.ClampPage(limit, skip)
	return models.NewFeedPage(a.index.Trending(skip, limit), limit, skip)
}

// Viral returns a page of the viral board.
func (a *Assembler) Viral(limit, skip int) models.FeedPage {
	limit, skip = a.ClampPage(limit, skip)
	return models.NewFeedPage(a.index.Viral(skip, limit), limit, skip)
}

// Category returns a page of a per-category board.
func (a *Assembler) Category(category string, limit, skip int) models.FeedPage {
	limit, skip = a.ClampPage(limit, skip)
	return models.NewFeedPage(a.index.Category(category, skip, limit), limit, skip)
}

// Hashtag lists videos carrying a hashtag, ordered by trending score as
// of now. Hashtag queries scan stats snapshots rather than a board; the
// tag space is unbounded and most tags are queried rarely.
func (a *Assembler) Hashtag(tag string, limit, skip int) models.FeedPage {
	limit, skip = a.ClampPage(limit, skip)
	tag = strings.TrimPrefix(strings.ToLower(tag), "#")

	now := time.Now().UTC()
	var matches []models.VideoSummary
	for _, s := range a.snaps.Snapshots() {
		if !hasHashtagFold(s, tag) {
			continue
		}
		scores := scoring.Score(s, now)
		entry := summaryFromStats(s)
		entry.TrendingScore = scores.Trending
		entry.ViralScore = scores.Viral
		matches = append(matches, entry)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].TrendingScore > matches[j].TrendingScore
	})

	return models.NewFeedPage(page(matches, skip, limit), limit, skip)
}

// SearchQuery describes one search request.
type SearchQuery struct {
	Text     string
	Category string
	Duration models.DurationBucket
	Sort     models.SearchSort
	Limit    int
	Skip     int
}

// Search scans stats snapshots matching the query text against titles
// and hashtags, with optional category and duration-bucket filters.
func (a *Assembler) Search(q SearchQuery) models.FeedPage {
	limit, skip := a.ClampPage(q.Limit, q.Skip)
	text := strings.ToLower(strings.TrimSpace(q.Text))

	var matches []models.VideoSummary
	var relevance []int
	for _, s := range a.snaps.Snapshots() {
		if q.Category != "" && s.Category != q.Category {
			continue
		}
		if !q.Duration.Contains(s.DurationSeconds) {
			continue
		}
		rel := relevanceOf(s, text)
		if text != "" && rel == 0 {
			continue
		}
		matches = append(matches, summaryFromStats(s))
		relevance = append(relevance, rel)
	}

	sortSearch(matches, relevance, q.Sort)
	return models.NewFeedPage(page(matches, skip, limit), limit, skip)
}

// relevanceOf scores how well a video matches the query text: a title
// hit outranks a hashtag hit.
func relevanceOf(s *models.VideoStats, text string) int {
	if text == "" {
		return 1
	}
	rel := 0
	if strings.Contains(strings.ToLower(s.Title), text) {
		rel += 2
	}
	if hasHashtagFold(s, strings.TrimPrefix(text, "#")) {
		rel++
	}
	return rel
}

// sortSearch orders search results by the requested key. Relevance is
// the default; ties fall back to views.
func sortSearch(matches []models.VideoSummary, relevance []int, key models.SearchSort) {
	switch key {
	case models.SortViews:
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].Views > matches[j].Views
		})
	case models.SortLikes:
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].Likes > matches[j].Likes
		})
	case models.SortRecent:
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		})
	default: // relevance
		idx := make(map[string]int, len(matches))
		for i, m := range matches {
			idx[m.VideoID] = relevance[i]
		}
		sort.SliceStable(matches, func(i, j int) bool {
			if idx[matches[i].VideoID] != idx[matches[j].VideoID] {
				return idx[matches[i].VideoID] > idx[matches[j].VideoID]
			}
			return matches[i].Views > matches[j].Views
		})
	}
}

// hasHashtagFold matches a hashtag case-insensitively.
func hasHashtagFold(s *models.VideoStats, tag string) bool {
	for _, h := range s.Hashtags {
		if strings.EqualFold(h, tag) {
			return true
		}
	}
	return false
}
