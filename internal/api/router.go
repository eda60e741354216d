// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reelpulse/reelpulse/internal/config"
	"github.com/reelpulse/reelpulse/internal/middleware"
)

// NewRouter builds the chi router with the full middleware stack.
func NewRouter(h *Handler, cfg config.APIConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Unthrottled operational endpoints.
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		if cfg.RateLimitReqs > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))
		}

		r.Get("/health", h.Health)
		r.Post("/engagement/event", h.IngestEvent)

		r.Route("/videos", func(r chi.Router) {
			r.Post("/", h.RegisterVideo)
			r.Delete("/{id}", h.DeleteVideo)
			r.Put("/{id}/category", h.UpdateVideoCategory)
			r.Get("/{id}/stats", h.VideoStats)
		})

		r.Get("/feed", h.PersonalizedFeed)

		r.Route("/rankings", func(r chi.Router) {
			r.Get("/trending", h.TrendingRankings)
			r.Get("/viral", h.ViralRankings)
			r.Get("/category/{category}", h.CategoryRankings)
			r.Get("/hashtag/{tag}", h.HashtagRankings)
			r.Get("/search", h.SearchVideos)
			r.Get("/status", h.RankingStatus)
			r.Get("/live", h.RankingsLive)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.OpenSession)
			r.Post("/{id}/swipe", h.SwipeSession)
			r.Delete("/{id}", h.EndSession)
		})
	})

	return r
}
