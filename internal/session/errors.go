// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package session

import "errors"

var (
	// ErrSessionNotFound is returned when no live or persisted cursor
	// exists for a session ID.
	ErrSessionNotFound = errors.New("swipe session not found")

	// ErrRateLimited is returned when a session exceeds its swipe rate.
	ErrRateLimited = errors.New("swipe rate limit exceeded")

	// ErrNoCurrentVideo is returned for a gesture that needs a current
	// video while the cursor sits past the end of the sequence.
	ErrNoCurrentVideo = errors.New("no current video at cursor position")

	// ErrInvalidDirection is returned for an unknown swipe direction.
	ErrInvalidDirection = errors.New("invalid swipe direction")
)
