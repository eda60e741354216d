// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package stats

import "errors"

var (
	// ErrNotFound is returned when no stats record exists for a video.
	// This is a programmer error: the video-publish hook creates the
	// record before any event can reference it. Callers surface it, they
	// do not retry it.
	ErrNotFound = errors.New("video stats not found")

	// ErrAlreadyExists is returned when registering a video that already
	// has a stats record.
	ErrAlreadyExists = errors.New("video stats already exist")

	// ErrConflict is returned when persistence contention or transient
	// store failure outlasts the bounded retry budget.
	ErrConflict = errors.New("stats persistence conflict")
)
