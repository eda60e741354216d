// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/reelpulse/reelpulse/internal/models"
)

type capturePublisher struct {
	topics []string
	events []*models.EngagementEvent
}

func (p *capturePublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		var event models.EngagementEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			return err
		}
		p.topics = append(p.topics, topic)
		p.events = append(p.events, &event)
	}
	return nil
}

func (p *capturePublisher) Close() error { return nil }

type allowAll struct{}

func (allowAll) Exists(string) bool { return true }

type allowOnly map[string]bool

func (a allowOnly) Exists(videoID string) bool { return a[videoID] }

func newTestIngestor(pub message.Publisher, registry Registry) *Ingestor {
	if registry == nil {
		registry = allowAll{}
	}
	return NewIngestor(pub, registry, Config{
		MinViewSeconds: 3,
		DedupTTL:       time.Minute,
		DedupMax:       100,
	})
}

func visibleEvent(eventType models.EventType) *models.EngagementEvent {
	event := models.NewEngagementEvent("u1", "v1", eventType)
	event.Visible = true
	return event
}

func TestSubmit_PublishesToTypedTopic(t *testing.T) {
	pub := &capturePublisher{}
	ing := newTestIngestor(pub, nil)

	event := visibleEvent(models.EventLike)
	event.NetNewLike = true
	if err := ing.Submit(context.Background(), event); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if len(pub.topics) != 1 || pub.topics[0] != "engagement.like" {
		t.Errorf("published to %v, want engagement.like", pub.topics)
	}
	if pub.events[0].EventID != event.EventID {
		t.Errorf("event ID lost in transit")
	}
}

func TestSubmit_RejectsInvalid(t *testing.T) {
	pub := &capturePublisher{}
	ing := newTestIngestor(pub, nil)

	event := visibleEvent(models.EventView)
	event.UserID = ""

	var verr *models.ValidationError
	if err := ing.Submit(context.Background(), event); !errors.As(err, &verr) {
		t.Errorf("Submit = %v, want ValidationError", err)
	}
	if len(pub.events) != 0 {
		t.Error("invalid event reached the pipeline")
	}
}

func TestSubmit_FailsClosedOnVisibility(t *testing.T) {
	pub := &capturePublisher{}
	ing := newTestIngestor(pub, nil)

	event := models.NewEngagementEvent("u1", "v1", models.EventView)
	// Visible defaults to false: an unset decision must reject.
	if err := ing.Submit(context.Background(), event); !errors.Is(err, ErrNotVisible) {
		t.Errorf("Submit = %v, want ErrNotVisible", err)
	}
	if len(pub.events) != 0 {
		t.Error("invisible event reached the pipeline")
	}
}

func TestSubmit_RejectsUnknownVideo(t *testing.T) {
	pub := &capturePublisher{}
	ing := newTestIngestor(pub, allowOnly{"known": true})

	event := visibleEvent(models.EventView)
	event.VideoID = "unknown"
	if err := ing.Submit(context.Background(), event); !errors.Is(err, ErrUnknownVideo) {
		t.Errorf("Submit = %v, want ErrUnknownVideo", err)
	}
}

func TestSubmit_SuppressesReplays(t *testing.T) {
	pub := &capturePublisher{}
	ing := newTestIngestor(pub, nil)

	event := visibleEvent(models.EventShare)
	if err := ing.Submit(context.Background(), event); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	if err := ing.Submit(context.Background(), event); err != nil {
		t.Fatalf("replayed Submit should be dropped silently, got: %v", err)
	}

	if len(pub.events) != 1 {
		t.Errorf("pipeline saw %d events, want 1", len(pub.events))
	}
}

func TestSubmit_SwipeTracksProgressWithoutPublishing(t *testing.T) {
	pub := &capturePublisher{}
	ing := newTestIngestor(pub, nil)

	event := visibleEvent(models.EventSwipe)
	event.SwipeDirection = models.SwipeLeft
	event.WatchTimeSeconds = 4.5
	if err := ing.Submit(context.Background(), event); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if len(pub.events) != 0 {
		t.Errorf("swipe reached the counter pipeline")
	}
	if ing.PendingViews() != 1 {
		t.Errorf("PendingViews = %d, want 1", ing.PendingViews())
	}
}

func TestSubmit_ViewClearsPendingWatchdogEntry(t *testing.T) {
	pub := &capturePublisher{}
	ing := newTestIngestor(pub, nil)

	swipe := visibleEvent(models.EventSwipe)
	swipe.SwipeDirection = models.SwipeLeft
	swipe.WatchTimeSeconds = 5
	ing.Submit(context.Background(), swipe)

	view := visibleEvent(models.EventView)
	view.WatchTimeSeconds = 8
	if err := ing.Submit(context.Background(), view); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if ing.PendingViews() != 0 {
		t.Errorf("PendingViews = %d after real view, want 0", ing.PendingViews())
	}
	if len(pub.events) != 1 || pub.events[0].EventType != models.EventView {
		t.Errorf("pipeline events = %v", pub.events)
	}
}

func TestFinalizeStale_EmitsViewsAboveFloor(t *testing.T) {
	pub := &capturePublisher{}
	ing := newTestIngestor(pub, nil)

	long := visibleEvent(models.EventSwipe)
	long.WatchTimeSeconds = 12
	long.SwipeDirection = models.SwipeUp
	long.Country = "DE"
	ing.Submit(context.Background(), long)

	short := visibleEvent(models.EventSwipe)
	short.UserID = "u2"
	short.WatchTimeSeconds = 1
	short.SwipeDirection = models.SwipeUp
	ing.Submit(context.Background(), short)

	// Everything tracked so far is stale relative to a future cutoff.
	finalized := ing.finalizeStale(time.Now().UTC().Add(time.Minute))
	if finalized != 1 {
		t.Fatalf("finalized %d views, want 1 (floor)", finalized)
	}

	if len(pub.events) != 1 {
		t.Fatalf("pipeline saw %d events, want 1", len(pub.events))
	}
	event := pub.events[0]
	if event.EventType != models.EventView || event.WatchTimeSeconds != 12 {
		t.Errorf("finalized event = %s/%f, want view/12", event.EventType, event.WatchTimeSeconds)
	}
	if event.Country != "DE" {
		t.Errorf("analytics dimensions lost: %s", event.Country)
	}
	if ing.PendingViews() != 0 {
		t.Errorf("PendingViews = %d after sweep, want 0", ing.PendingViews())
	}
}

func TestFinalizeStale_KeepsFreshEntries(t *testing.T) {
	ing := newTestIngestor(&capturePublisher{}, nil)

	swipe := visibleEvent(models.EventSwipe)
	swipe.WatchTimeSeconds = 10
	swipe.SwipeDirection = models.SwipeUp
	ing.Submit(context.Background(), swipe)

	if n := ing.finalizeStale(time.Now().UTC().Add(-time.Minute)); n != 0 {
		t.Errorf("finalized %d fresh views, want 0", n)
	}
	if ing.PendingViews() != 1 {
		t.Errorf("PendingViews = %d, want 1", ing.PendingViews())
	}
}

func TestSubmit_RepeatedSwipeUpdatesProgressInPlace(t *testing.T) {
	pub := &capturePublisher{}
	ing := newTestIngestor(pub, nil)

	for _, watch := range []float64{2, 5, 9} {
		swipe := visibleEvent(models.EventSwipe)
		swipe.SwipeDirection = models.SwipeUp
		swipe.WatchTimeSeconds = watch
		if err := ing.Submit(context.Background(), swipe); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	if ing.PendingViews() != 1 {
		t.Fatalf("PendingViews = %d, want 1 (same user/video)", ing.PendingViews())
	}

	ing.finalizeStale(time.Now().UTC().Add(time.Minute))
	if len(pub.events) != 1 || pub.events[0].WatchTimeSeconds != 9 {
		t.Errorf("finalized with %v, want last-known 9", pub.events)
	}
}
