// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

// Package models defines the canonical domain types shared across
// Reelpulse components: engagement events, per-video statistics,
// feed cursors, and API summaries.
package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of engagement event.
type EventType string

// Engagement event types.
const (
	EventView    EventType = "view"
	EventLike    EventType = "like"
	EventUnlike  EventType = "unlike"
	EventComment EventType = "comment"
	EventShare   EventType = "share"
	EventSave    EventType = "save"
	EventUnsave  EventType = "unsave"
	EventSwipe   EventType = "swipe"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventView, EventLike, EventUnlike, EventComment, EventShare,
		EventSave, EventUnsave, EventSwipe:
		return true
	}
	return false
}

// SwipeDirection identifies a swipe gesture.
type SwipeDirection string

// Swipe directions. Right toggles like, left advances (and may emit a
// view), up retreats, down opens the creator channel.
const (
	SwipeLeft  SwipeDirection = "left"
	SwipeRight SwipeDirection = "right"
	SwipeUp    SwipeDirection = "up"
	SwipeDown  SwipeDirection = "down"
)

// Valid reports whether d is a known swipe direction.
func (d SwipeDirection) Valid() bool {
	switch d {
	case SwipeLeft, SwipeRight, SwipeUp, SwipeDown:
		return true
	}
	return false
}

// EngagementEvent is the canonical normalized form of an incoming
// engagement event. Events are transient: processed, never persisted.
type EngagementEvent struct {
	// EventID uniquely identifies the event for replay suppression.
	EventID string `json:"event_id"`

	UserID    string    `json:"user_id"`
	VideoID   string    `json:"video_id"`
	EventType EventType `json:"event_type"`

	// WatchTimeSeconds is set for view events.
	WatchTimeSeconds float64 `json:"watch_time_seconds,omitempty"`

	// SwipeDirection is set for swipe events.
	SwipeDirection SwipeDirection `json:"swipe_direction,omitempty"`

	// Visible is the pre-computed visibility decision from the external
	// access-control collaborator. Ingest fails closed when false.
	Visible bool `json:"visible"`

	// NetNewLike is forwarded from the like-relation store for like
	// events: false means the like was a duplicate and must not change
	// counters.
	NetNewLike bool `json:"net_new_like,omitempty"`

	// Analytics dimensions, optional.
	Country string `json:"country,omitempty"`
	Device  string `json:"device,omitempty"`

	// OccurredAt is client-reported or server-assigned.
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEngagementEvent creates an event with a unique ID and server timestamp.
func NewEngagementEvent(userID, videoID string, eventType EventType) *EngagementEvent {
	return &EngagementEvent{
		EventID:    uuid.New().String(),
		UserID:     userID,
		VideoID:    videoID,
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
	}
}

// Validate checks required fields and returns an error if validation fails.
func (e *EngagementEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.UserID == "" {
		return &ValidationError{Field: "user_id", Message: "required"}
	}
	if e.VideoID == "" {
		return &ValidationError{Field: "video_id", Message: "required"}
	}
	if !e.EventType.Valid() {
		return &ValidationError{Field: "event_type", Message: "unknown event type"}
	}
	if e.WatchTimeSeconds < 0 {
		return &ValidationError{Field: "watch_time_seconds", Message: "must be non-negative"}
	}
	if e.EventType == EventSwipe && !e.SwipeDirection.Valid() {
		return &ValidationError{Field: "swipe_direction", Message: "unknown swipe direction"}
	}
	return nil
}

// Topic returns the Watermill topic for this event.
// Format: engagement.<event_type>
func (e *EngagementEvent) Topic() string {
	return "engagement." + string(e.EventType)
}

// ValidationError describes a rejected field in an engagement event or
// API payload. Validation failures are never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Field + ": " + e.Message
}
