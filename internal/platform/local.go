// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

// Package platform supplies the collaborator implementations Reelpulse
// needs from the surrounding product: user interests, video visibility,
// creator profiles and follow edges, and the like relation.
//
// This package ships the local standalone mode: visibility is derived
// from registration, interests are empty, and like/follow edges live in
// process. Deployments embedded in a full platform replace these with
// clients for the account and moderation services.
package platform

import (
	"context"
	"sync"

	"github.com/reelpulse/reelpulse/internal/models"
	"github.com/reelpulse/reelpulse/internal/stats"
)

// LocalDirectory implements the feed and session collaborator
// interfaces against local state.
type LocalDirectory struct {
	store *stats.Store

	mu      sync.Mutex
	likes   map[string]bool
	follows map[string]bool
}

// NewLocalDirectory creates the standalone-mode collaborators.
func NewLocalDirectory(store *stats.Store) *LocalDirectory {
	return &LocalDirectory{
		store:   store,
		likes:   make(map[string]bool),
		follows: make(map[string]bool),
	}
}

// InterestsOf returns no interests; standalone feeds fall back to the
// global trending board.
func (d *LocalDirectory) InterestsOf(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

// IsVisible treats every registered video as servable. Moderation state
// is not modeled in standalone mode.
func (d *LocalDirectory) IsVisible(_ context.Context, videoID string) bool {
	return d.store.Exists(videoID)
}

// Profile projects a creator profile from the ID alone.
func (d *LocalDirectory) Profile(_ context.Context, creatorID string) (*models.CreatorProfile, error) {
	return &models.CreatorProfile{
		UserID:   creatorID,
		Username: creatorID,
	}, nil
}

// IsFollowing reports the locally tracked follow edge.
func (d *LocalDirectory) IsFollowing(_ context.Context, userID, creatorID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.follows[userID+"|"+creatorID], nil
}

// Toggle flips the like edge and reports the resulting state.
func (d *LocalDirectory) Toggle(_ context.Context, userID, videoID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := userID + "|" + videoID
	d.likes[key] = !d.likes[key]
	return d.likes[key], nil
}
