// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package ingest

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/reelpulse/reelpulse/internal/models"
	"github.com/reelpulse/reelpulse/internal/stats"
)

type fakeApplier struct {
	applied []*models.StatsDelta
	err     error
}

func (f *fakeApplier) Apply(_ string, delta *models.StatsDelta) (*models.VideoStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.applied = append(f.applied, delta)
	return &models.VideoStats{}, nil
}

func messageFor(t *testing.T, event *models.EngagementEvent) *message.Message {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return message.NewMessage(event.EventID, payload)
}

func TestConsume_AppliesDelta(t *testing.T) {
	applier := &fakeApplier{}
	p, err := NewPipeline(applier, DefaultPipelineConfig())
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	defer p.Close()

	event := models.NewEngagementEvent("u1", "v1", models.EventComment)
	if err := p.consume(messageFor(t, event)); err != nil {
		t.Fatalf("consume failed: %v", err)
	}

	if len(applier.applied) != 1 || applier.applied[0].Comments != 1 {
		t.Errorf("applied deltas = %v", applier.applied)
	}
}

func TestConsume_AcksMalformedPayload(t *testing.T) {
	applier := &fakeApplier{}
	p, err := NewPipeline(applier, DefaultPipelineConfig())
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	defer p.Close()

	msg := message.NewMessage("bad", []byte("{not json"))
	if err := p.consume(msg); err != nil {
		t.Errorf("malformed payload should ack, got: %v", err)
	}
	if len(applier.applied) != 0 {
		t.Error("malformed payload reached the applier")
	}
}

func TestConsume_AcksUnknownVideo(t *testing.T) {
	p, err := NewPipeline(&fakeApplier{err: stats.ErrNotFound}, DefaultPipelineConfig())
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	defer p.Close()

	event := models.NewEngagementEvent("u1", "deleted", models.EventShare)
	if err := p.consume(messageFor(t, event)); err != nil {
		t.Errorf("unknown video should ack, got: %v", err)
	}
}

func TestConsume_PropagatesConflictForRetry(t *testing.T) {
	p, err := NewPipeline(&fakeApplier{err: stats.ErrConflict}, DefaultPipelineConfig())
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	defer p.Close()

	event := models.NewEngagementEvent("u1", "v1", models.EventShare)
	if err := p.consume(messageFor(t, event)); err == nil {
		t.Error("persistence conflict should propagate for retry")
	}
}

func TestConsume_SkipsZeroDeltas(t *testing.T) {
	applier := &fakeApplier{}
	p, err := NewPipeline(applier, DefaultPipelineConfig())
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	defer p.Close()

	// A like that was not net-new decodes fine but moves no counters.
	event := models.NewEngagementEvent("u1", "v1", models.EventLike)
	if err := p.consume(messageFor(t, event)); err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if len(applier.applied) != 0 {
		t.Error("zero delta reached the applier")
	}
}
