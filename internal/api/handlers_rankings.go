// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/reelpulse/reelpulse/internal/feed"
	"github.com/reelpulse/reelpulse/internal/logging"
	"github.com/reelpulse/reelpulse/internal/models"
	"github.com/reelpulse/reelpulse/internal/ranking"
)

// PersonalizedFeed returns a page of the per-user feed.
//
// GET /api/v1/feed?user_id=&limit=&skip=&exclude=a,b,c
func (h *Handler) PersonalizedFeed(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	limit, skip := pageParams(r)
	exclude := splitList(r.URL.Query().Get("exclude"))

	page, err := h.assembler.Personalized(r.Context(), userID, exclude, limit, skip)
	if err != nil {
		logging.CtxErr(r.Context(), err).Str("user_id", userID).Msg("Feed assembly failed")
		respondError(w, http.StatusInternalServerError, "feed assembly failed")
		return
	}
	respondData(w, http.StatusOK, page)
}

// TrendingRankings returns a page of the global trending board, or a
// per-category board when category is given.
//
// GET /api/v1/rankings/trending?category=
func (h *Handler) TrendingRankings(w http.ResponseWriter, r *http.Request) {
	limit, skip := pageParams(r)
	if category := r.URL.Query().Get("category"); category != "" {
		respondData(w, http.StatusOK, h.assembler.Category(category, limit, skip))
		return
	}
	respondData(w, http.StatusOK, h.assembler.Trending(limit, skip))
}

// ViralRankings returns a page of the viral board.
//
// GET /api/v1/rankings/viral
func (h *Handler) ViralRankings(w http.ResponseWriter, r *http.Request) {
	limit, skip := pageParams(r)
	respondData(w, http.StatusOK, h.assembler.Viral(limit, skip))
}

// CategoryRankings returns a page of one per-category board.
//
// GET /api/v1/rankings/category/{category}
func (h *Handler) CategoryRankings(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	limit, skip := pageParams(r)
	respondData(w, http.StatusOK, h.assembler.Category(category, limit, skip))
}

// HashtagRankings lists videos carrying a hashtag, best trending first.
//
// GET /api/v1/rankings/hashtag/{tag}
func (h *Handler) HashtagRankings(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	limit, skip := pageParams(r)
	respondData(w, http.StatusOK, h.assembler.Hashtag(tag, limit, skip))
}

// SearchVideos searches titles and hashtags with optional filters.
//
// GET /api/v1/rankings/search?q=&category=&duration=&sort=&limit=&skip=
func (h *Handler) SearchVideos(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	sortKey := models.SearchSort(query.Get("sort"))
	if sortKey != "" && !sortKey.Valid() {
		respondError(w, http.StatusBadRequest, "unknown sort key")
		return
	}

	duration := models.DurationBucket(query.Get("duration"))
	switch duration {
	case models.DurationAny, models.DurationShort, models.DurationMedium, models.DurationLong:
	default:
		respondError(w, http.StatusBadRequest, "unknown duration bucket")
		return
	}

	limit, skip := pageParams(r)
	page := h.assembler.Search(feed.SearchQuery{
		Text:     query.Get("q"),
		Category: query.Get("category"),
		Duration: duration,
		Sort:     sortKey,
		Limit:    limit,
		Skip:     skip,
	})
	respondData(w, http.StatusOK, page)
}

// RankingStatus reports the current materialization epoch.
//
// GET /api/v1/rankings/status
func (h *Handler) RankingStatus(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]interface{}{
		"epoch":         h.index.Epoch(),
		"built_at":      h.index.BuiltAt(),
		"trending_size": h.index.Len(ranking.ScopeTrending),
		"viral_size":    h.index.Len(ranking.ScopeViral),
	})
}

// pageParams extracts limit and skip from the query string. Zero means
// "use the default"; the assembler clamps both.
func pageParams(r *http.Request) (limit, skip int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	skip, _ = strconv.Atoi(r.URL.Query().Get("skip"))
	return limit, skip
}

// splitList parses a comma-separated query value.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
