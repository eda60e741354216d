// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

// Package ingest normalizes engagement events and moves them through
// the in-process pipeline: validation and replay suppression at the
// edge, a Watermill router applying counter deltas to the stats store,
// and a watchdog that finalizes views whose terminating signal never
// arrived.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/reelpulse/reelpulse/internal/cache"
	"github.com/reelpulse/reelpulse/internal/logging"
	"github.com/reelpulse/reelpulse/internal/metrics"
	"github.com/reelpulse/reelpulse/internal/models"
)

var (
	// ErrNotVisible is returned when the visibility decision attached to
	// an event is false. Ingest fails closed: no counter may move for a
	// video the collaborator did not clear.
	ErrNotVisible = errors.New("event rejected: video not visible")

	// ErrUnknownVideo is returned when the event references a video with
	// no stats record.
	ErrUnknownVideo = errors.New("event rejected: unknown video")
)

// Registry answers whether a stats record exists for a video.
// Implemented by the stats store.
type Registry interface {
	Exists(videoID string) bool
}

// Config configures the ingestor.
type Config struct {
	// MinViewSeconds is the watch-time floor for watchdog-finalized views.
	MinViewSeconds float64

	// DedupTTL and DedupMax bound the replay-suppression cache.
	DedupTTL time.Duration
	DedupMax int
}

// viewProgress is a pending view tracked for watchdog finalization.
type viewProgress struct {
	UserID           string
	VideoID          string
	WatchTimeSeconds float64
	Country          string
	Device           string
}

// Ingestor is the validated entry point for engagement events. All
// producers (HTTP handlers, the swipe controller, the watchdog) submit
// through it.
type Ingestor struct {
	publisher message.Publisher
	registry  Registry
	dedup     *cache.LRU[struct{}]
	pending   *cache.MinHeap[viewProgress]
	cfg       Config
}

// NewIngestor creates an ingestor publishing into the pipeline.
func NewIngestor(publisher message.Publisher, registry Registry, cfg Config) *Ingestor {
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 5 * time.Minute
	}
	if cfg.DedupMax < 1 {
		cfg.DedupMax = 10000
	}
	if cfg.MinViewSeconds <= 0 {
		cfg.MinViewSeconds = 3
	}

	return &Ingestor{
		publisher: publisher,
		registry:  registry,
		dedup:     cache.NewLRU[struct{}](cfg.DedupMax, cfg.DedupTTL),
		pending:   cache.NewMinHeap[viewProgress](0),
		cfg:       cfg,
	}
}

// Submit validates an event and hands it to the pipeline. Validation
// failures and invisible videos are rejected; replayed event IDs are
// dropped silently. Swipe events with watch progress feed the view
// watchdog instead of the counter pipeline.
func (i *Ingestor) Submit(ctx context.Context, event *models.EngagementEvent) error {
	if err := event.Validate(); err != nil {
		metrics.RecordReject("validation")
		return err
	}
	if !event.Visible {
		metrics.RecordReject("not_visible")
		return ErrNotVisible
	}
	if !i.registry.Exists(event.VideoID) {
		metrics.RecordReject("unknown_video")
		return ErrUnknownVideo
	}
	if i.dedup.Seen(event.EventID) {
		metrics.RecordReject("duplicate")
		logging.Ctx(ctx).Debug().
			Str("event_id", event.EventID).
			Msg("Duplicate engagement event dropped")
		return nil
	}

	switch event.EventType {
	case models.EventSwipe:
		// Swipes never reach the counter pipeline. Watch progress on the
		// current card is remembered so the watchdog can finalize the
		// view if no left swipe ever lands.
		if event.WatchTimeSeconds > 0 {
			i.trackProgress(event)
		}
		metrics.RecordIngest(string(event.EventType))
		return nil
	case models.EventView:
		// A real view supersedes any pending watchdog entry.
		i.pending.Remove(progressKey(event.UserID, event.VideoID))
	}

	if err := i.publish(event); err != nil {
		return err
	}

	metrics.RecordIngest(string(event.EventType))
	return nil
}

// trackProgress records last-known watch progress for a user on a video.
func (i *Ingestor) trackProgress(event *models.EngagementEvent) {
	i.pending.Push(progressKey(event.UserID, event.VideoID), viewProgress{
		UserID:           event.UserID,
		VideoID:          event.VideoID,
		WatchTimeSeconds: event.WatchTimeSeconds,
		Country:          event.Country,
		Device:           event.Device,
	}, time.Now().UTC())
}

// finalizeStale pops every pending view whose last progress predates the
// cutoff and emits a view event with the last-known watch time. Views
// below the floor are discarded, matching the left-swipe rule.
func (i *Ingestor) finalizeStale(cutoff time.Time) int {
	finalized := 0
	for _, entry := range i.pending.PopBefore(cutoff) {
		progress := entry.Value
		if progress.WatchTimeSeconds < i.cfg.MinViewSeconds {
			continue
		}

		event := models.NewEngagementEvent(progress.UserID, progress.VideoID, models.EventView)
		event.WatchTimeSeconds = progress.WatchTimeSeconds
		event.Country = progress.Country
		event.Device = progress.Device
		event.Visible = true

		if err := i.publish(event); err != nil {
			logging.Err(err).
				Str("video_id", progress.VideoID).
				Msg("Watchdog view finalization failed")
			continue
		}
		metrics.ViewsFinalizedByWatchdog.Inc()
		metrics.RecordIngest(string(models.EventView))
		finalized++
	}
	return finalized
}

// PendingViews returns the number of views awaiting finalization.
func (i *Ingestor) PendingViews() int {
	return i.pending.Len()
}

// publish marshals an event onto its pipeline topic.
func (i *Ingestor) publish(event *models.EngagementEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := message.NewMessage(event.EventID, payload)
	return i.publisher.Publish(event.Topic(), msg)
}

func progressKey(userID, videoID string) string {
	return userID + "|" + videoID
}
