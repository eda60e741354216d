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
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	gws "github.com/gorilla/websocket"

	"github.com/reelpulse/reelpulse/internal/feed"
	"github.com/reelpulse/reelpulse/internal/ingest"
	"github.com/reelpulse/reelpulse/internal/logging"
	"github.com/reelpulse/reelpulse/internal/models"
	"github.com/reelpulse/reelpulse/internal/ranking"
	"github.com/reelpulse/reelpulse/internal/session"
	"github.com/reelpulse/reelpulse/internal/stats"
	"github.com/reelpulse/reelpulse/internal/websocket"
)

// Handler carries the API's dependencies.
type Handler struct {
	ingestor  *ingest.Ingestor
	store     *stats.Store
	assembler *feed.Assembler
	sessions  *session.Controller
	index     *ranking.Index
	hub       *websocket.Hub
	validate  *validator.Validate
	upgrader  gws.Upgrader
}

// NewHandler creates a handler.
func NewHandler(ingestor *ingest.Ingestor, store *stats.Store, assembler *feed.Assembler,
	sessions *session.Controller, index *ranking.Index, hub *websocket.Hub) *Handler {

	return &Handler{
		ingestor:  ingestor,
		store:     store,
		assembler: assembler,
		sessions:  sessions,
		index:     index,
		hub:       hub,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		upgrader: gws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin enforcement happens at the CORS layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// IngestEvent accepts one engagement event.
//
// POST /api/v1/engagement/event
func (h *Handler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var event models.EngagementEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if event.EventID == "" {
		// Edge clients may omit the ID; server-assigned IDs still dedup
		// retries that reuse the same body.
		event.EventID = logging.GenerateRequestID()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	err := h.ingestor.Submit(r.Context(), &event)
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, ingest.ErrNotVisible):
		respondError(w, http.StatusForbidden, "video is not visible")
	case errors.Is(err, ingest.ErrUnknownVideo):
		respondError(w, http.StatusNotFound, "video not found")
	case err != nil:
		logging.CtxErr(r.Context(), err).Msg("Event submission failed")
		respondError(w, http.StatusInternalServerError, "event submission failed")
	default:
		respondData(w, http.StatusAccepted, map[string]string{"event_id": event.EventID})
	}
}

// RegisterVideo creates the stats record for a published video.
//
// POST /api/v1/videos
func (h *Handler) RegisterVideo(w http.ResponseWriter, r *http.Request) {
	var reg models.VideoRegistration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(&reg); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.store.Create(&reg)
	switch {
	case errors.Is(err, stats.ErrAlreadyExists):
		respondError(w, http.StatusConflict, "video already registered")
	case err != nil:
		logging.CtxErr(r.Context(), err).Str("video_id", reg.VideoID).Msg("Video registration failed")
		respondError(w, http.StatusInternalServerError, "video registration failed")
	default:
		logging.Ctx(r.Context()).Info().
			Str("video_id", rec.VideoID).
			Str("category", rec.Category).
			Msg("Video registered")
		respondData(w, http.StatusCreated, rec)
	}
}

// DeleteVideo removes a video's stats record and cascades into the
// ranking boards and channel cache.
//
// DELETE /api/v1/videos/{id}
func (h *Handler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	rec, err := h.store.Read(videoID)
	if errors.Is(err, stats.ErrNotFound) {
		respondError(w, http.StatusNotFound, "video not found")
		return
	}
	if err == nil {
		if derr := h.store.Delete(videoID); derr != nil {
			logging.CtxErr(r.Context(), derr).Str("video_id", videoID).Msg("Video deletion failed")
			respondError(w, http.StatusInternalServerError, "video deletion failed")
			return
		}
		h.index.Remove(videoID)
		h.assembler.InvalidateChannel(rec.CreatorID)
	}

	logging.Ctx(r.Context()).Info().Str("video_id", videoID).Msg("Video deleted")
	w.WriteHeader(http.StatusNoContent)
}

// categoryUpdateRequest carries a video's new category.
type categoryUpdateRequest struct {
	Category string `json:"category" validate:"required"`
}

// UpdateVideoCategory reassigns a video's category. The stats record is
// the source of truth; the ranking index moves the entry between
// category boards in place so the change serves before the next sweep.
//
// PUT /api/v1/videos/{id}/category
func (h *Handler) UpdateVideoCategory(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	var req categoryUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.store.UpdateCategory(videoID, req.Category)
	switch {
	case errors.Is(err, stats.ErrNotFound):
		respondError(w, http.StatusNotFound, "video not found")
	case err != nil:
		logging.CtxErr(r.Context(), err).Str("video_id", videoID).Msg("Category update failed")
		respondError(w, http.StatusInternalServerError, "category update failed")
	default:
		h.index.UpsertCategory(videoID, req.Category)
		logging.Ctx(r.Context()).Info().
			Str("video_id", videoID).
			Str("category", req.Category).
			Msg("Video category updated")
		respondData(w, http.StatusOK, rec)
	}
}

// VideoStats returns the full stats record for a video, including the
// analytics buckets.
//
// GET /api/v1/videos/{id}/stats
func (h *Handler) VideoStats(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	rec, err := h.store.Read(videoID)
	if errors.Is(err, stats.ErrNotFound) {
		respondError(w, http.StatusNotFound, "video not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "stats read failed")
		return
	}
	respondData(w, http.StatusOK, rec)
}
