// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package ranking

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/reelpulse/reelpulse/internal/metrics"
	"github.com/reelpulse/reelpulse/internal/models"
)

// Index serves the current materialized boards. Reads never touch live
// counters: between refreshes every caller sees the same epoch, and a
// failed refresh leaves the last good materialization serving.
type Index struct {
	mu      sync.RWMutex
	boards  map[string][]models.VideoSummary
	epoch   int64
	builtAt time.Time
}

// NewIndex creates an empty index. Until the first refresh lands, every
// board reads as empty.
func NewIndex() *Index {
	return &Index{boards: make(map[string][]models.VideoSummary)}
}

// Install atomically swaps in a new materialization and advances the
// epoch. Called only by the refresher.
func (x *Index) Install(boards map[string][]models.VideoSummary, builtAt time.Time) int64 {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.boards = boards
	x.epoch++
	x.builtAt = builtAt

	for scope, entries := range boards {
		metrics.SetBoardSize(scope, len(entries))
	}
	return x.epoch
}

// TopK returns a page of a board: entries [skip, skip+limit). The
// returned slice is a copy and safe to hold across refreshes.
func (x *Index) TopK(scope string, skip, limit int) []models.VideoSummary {
	x.mu.RLock()
	defer x.mu.RUnlock()

	board := x.boards[scope]
	if skip < 0 {
		skip = 0
	}
	if skip >= len(board) || limit <= 0 {
		return []models.VideoSummary{}
	}

	end := skip + limit
	if end > len(board) {
		end = len(board)
	}

	page := make([]models.VideoSummary, end-skip)
	copy(page, board[skip:end])
	return page
}

// Trending returns a page of the global trending board.
func (x *Index) Trending(skip, limit int) []models.VideoSummary {
	return x.TopK(ScopeTrending, skip, limit)
}

// Viral returns a page of the viral board.
func (x *Index) Viral(skip, limit int) []models.VideoSummary {
	return x.TopK(ScopeViral, skip, limit)
}

// Category returns a page of a per-category board.
func (x *Index) Category(category string, skip, limit int) []models.VideoSummary {
	return x.TopK(ScopeCategory(category), skip, limit)
}

// Remove drops a video from every board without waiting for the next
// refresh. Used by the delete cascade so a removed video stops being
// served immediately.
func (x *Index) Remove(videoID string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	for scope, board := range x.boards {
		for i, entry := range board {
			if entry.VideoID == videoID {
				x.boards[scope] = append(board[:i:i], board[i+1:]...)
				metrics.SetBoardSize(scope, len(x.boards[scope]))
				break
			}
		}
	}
}

// UpsertCategory moves a video between category boards without waiting
// for the next refresh: the entry leaves its old category board and is
// inserted into the new one at its trending-order position. The entry
// keeps the scores of the serving materialization; the next sweep
// recomputes everything from stats anyway. A video not yet on any board
// is a no-op and gets placed by that sweep.
func (x *Index) UpsertCategory(videoID, category string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	var entry *models.VideoSummary
	for scope, board := range x.boards {
		pos := -1
		for i := range board {
			if board[i].VideoID == videoID {
				pos = i
				break
			}
		}
		if pos < 0 {
			continue
		}
		if entry == nil {
			e := board[pos]
			e.Category = category
			entry = &e
		}
		if strings.HasPrefix(scope, categoryScopePrefix) {
			x.boards[scope] = append(board[:pos:pos], board[pos+1:]...)
			metrics.SetBoardSize(scope, len(x.boards[scope]))
		} else {
			board[pos].Category = category
		}
	}
	if entry == nil || category == "" {
		return
	}

	scope := ScopeCategory(category)
	board := x.boards[scope]
	at := sort.Search(len(board), func(i int) bool {
		return trendingBefore(*entry, board[i])
	})
	board = append(board, models.VideoSummary{})
	copy(board[at+1:], board[at:])
	board[at] = *entry
	x.boards[scope] = board
	metrics.SetBoardSize(scope, len(board))
}

// Epoch returns the monotonic materialization counter. Zero means no
// refresh has landed yet.
func (x *Index) Epoch() int64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.epoch
}

// BuiltAt returns the instant the serving materialization was computed
// against.
func (x *Index) BuiltAt() time.Time {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.builtAt
}

// Len returns the entry count of a board.
func (x *Index) Len(scope string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.boards[scope])
}
