// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/reelpulse/reelpulse/internal/logging"
	"github.com/reelpulse/reelpulse/internal/session"
	"github.com/reelpulse/reelpulse/internal/websocket"
)

// sessionOpenRequest starts a new session or resumes an existing one
// when session_id is supplied.
type sessionOpenRequest struct {
	UserID    string `json:"user_id" validate:"required_without=SessionID"`
	SessionID string `json:"session_id"`
}

// OpenSession starts or resumes a swipe session.
//
// POST /api/v1/sessions
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req sessionOpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.SessionID != "" {
		state, err := h.sessions.Resume(r.Context(), req.SessionID)
		if errors.Is(err, session.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "session not found or expired")
			return
		}
		if err != nil {
			logging.CtxErr(r.Context(), err).Str("session_id", req.SessionID).Msg("Session resume failed")
			respondError(w, http.StatusInternalServerError, "session resume failed")
			return
		}
		respondData(w, http.StatusOK, state)
		return
	}

	state, err := h.sessions.Start(r.Context(), req.UserID)
	if err != nil {
		logging.CtxErr(r.Context(), err).Str("user_id", req.UserID).Msg("Session start failed")
		respondError(w, http.StatusInternalServerError, "session start failed")
		return
	}
	respondData(w, http.StatusCreated, state)
}

// SwipeSession applies one gesture to a session.
//
// POST /api/v1/sessions/{id}/swipe
func (h *Handler) SwipeSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req session.SwipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := h.sessions.Swipe(r.Context(), sessionID, &req)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrRateLimited):
		respondError(w, http.StatusTooManyRequests, "swipe rate limit exceeded")
	case errors.Is(err, session.ErrInvalidDirection):
		respondError(w, http.StatusBadRequest, "unknown swipe direction")
	case err != nil:
		logging.CtxErr(r.Context(), err).Str("session_id", sessionID).Msg("Swipe failed")
		respondError(w, http.StatusInternalServerError, "swipe failed")
	default:
		respondData(w, http.StatusOK, outcome)
	}
}

// EndSession closes a session and discards its cursor.
//
// DELETE /api/v1/sessions/{id}
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	if err := h.sessions.End(r.Context(), sessionID); err != nil {
		logging.CtxErr(r.Context(), err).Str("session_id", sessionID).Msg("Session end failed")
		respondError(w, http.StatusInternalServerError, "session end failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RankingsLive upgrades the connection and subscribes it to ranking
// refresh notifications.
//
// GET /api/v1/rankings/live
func (h *Handler) RankingsLive(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.CtxErr(r.Context(), err).Msg("Websocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}

// Health reports liveness plus coarse component stats.
//
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"time":              time.Now().UTC(),
		"videos":            h.store.Len(),
		"ranking_epoch":     h.index.Epoch(),
		"live_sessions":     h.sessions.Live(),
		"websocket_clients": h.hub.ClientCount(),
		"pending_views":     h.ingestor.PendingViews(),
	})
}
