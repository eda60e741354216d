// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/reelpulse/reelpulse/internal/logging"
	"github.com/reelpulse/reelpulse/internal/metrics"
	"github.com/reelpulse/reelpulse/internal/models"
	"github.com/reelpulse/reelpulse/internal/stats"
)

// counterTopics are the event types whose deltas move counters. Swipes
// never enter the pipeline.
var counterTopics = []models.EventType{
	models.EventView,
	models.EventLike,
	models.EventUnlike,
	models.EventComment,
	models.EventShare,
	models.EventSave,
	models.EventUnsave,
}

// DeltaApplier applies counter deltas. Implemented by the stats store.
type DeltaApplier interface {
	Apply(videoID string, delta *models.StatsDelta) (*models.VideoStats, error)
}

// PipelineConfig configures the router.
type PipelineConfig struct {
	// CloseTimeout is how long to wait for in-flight handlers on close.
	CloseTimeout time.Duration

	// Retry settings for transient apply failures.
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
}

// DefaultPipelineConfig returns production defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      5,
		RetryInitialInterval: 100 * time.Millisecond,
	}
}

// Pipeline moves engagement events from producers to the stats store
// through an in-process Watermill pub/sub: the HTTP edge and the swipe
// controller publish, one consumer per event type applies deltas. The
// router's retry middleware absorbs transient persistence failures.
type Pipeline struct {
	pubsub  *gochannel.GoChannel
	router  *message.Router
	applier DeltaApplier
}

// NewPipeline builds the pub/sub and router and registers the delta
// consumers.
func NewPipeline(applier DeltaApplier, cfg PipelineConfig) (*Pipeline, error) {
	wmLogger := newWatermillLogger()

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 1024,
	}, wmLogger)

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		Logger:          wmLogger,
	}
	router.AddMiddleware(retry.Middleware)

	p := &Pipeline{pubsub: pubsub, router: router, applier: applier}

	for _, eventType := range counterTopics {
		topic := "engagement." + string(eventType)
		router.AddConsumerHandler(
			"stats-"+string(eventType),
			topic,
			pubsub,
			p.consume,
		)
	}

	return p, nil
}

// Publisher returns the pipeline's input side.
func (p *Pipeline) Publisher() message.Publisher {
	return p.pubsub
}

// consume applies one event's delta to the stats store. Unknown videos
// are acked and counted: the record was deleted between submit and
// apply, and retrying cannot help. Persistence conflicts propagate so
// the retry middleware backs off and redelivers.
func (p *Pipeline) consume(msg *message.Message) error {
	var event models.EngagementEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		metrics.RecordReject("malformed_payload")
		logging.Err(err).Str("message_uuid", msg.UUID).Msg("Undecodable event payload dropped")
		return nil
	}

	delta := DeltaFor(&event)
	if delta.IsZero() {
		return nil
	}

	_, err := p.applier.Apply(event.VideoID, delta)
	switch {
	case errors.Is(err, stats.ErrNotFound):
		metrics.RecordReject("unknown_video")
		return nil
	case err != nil:
		return err
	}
	return nil
}

// Serve runs the router until the context is cancelled.
func (p *Pipeline) Serve(ctx context.Context) error {
	logging.Info().Int("consumers", len(counterTopics)).Msg("Ingest pipeline started")
	err := p.router.Run(ctx)
	logging.Info().Msg("Ingest pipeline stopped")
	return err
}

// String implements the suture service name.
func (p *Pipeline) String() string {
	return "ingest-pipeline"
}

// Close stops the pub/sub after the router has drained.
func (p *Pipeline) Close() error {
	return p.pubsub.Close()
}

// watermillLogger adapts the zerolog global logger to the watermill
// LoggerAdapter interface.
type watermillLogger struct {
	fields watermill.LogFields
}

func newWatermillLogger() watermill.LoggerAdapter {
	return &watermillLogger{}
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	logging.Err(err).Fields(map[string]interface{}(l.merged(fields))).Msg(msg)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	logging.Debug().Fields(map[string]interface{}(l.merged(fields))).Msg(msg)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	logging.Debug().Fields(map[string]interface{}(l.merged(fields))).Msg(msg)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	logging.Debug().Fields(map[string]interface{}(l.merged(fields))).Msg(msg)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{fields: l.merged(fields)}
}

func (l *watermillLogger) merged(fields watermill.LogFields) watermill.LogFields {
	if len(l.fields) == 0 {
		return fields
	}
	return l.fields.Add(fields)
}
