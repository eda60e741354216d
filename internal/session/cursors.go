// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/reelpulse/reelpulse/internal/models"
)

// cursorKeyPrefix namespaces session cursors in badger.
const cursorKeyPrefix = "cursor:"

// BadgerCursorStore persists feed cursors with a TTL so reaped sessions
// can be resumed until the cursor expires.
type BadgerCursorStore struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadgerCursorStore creates a cursor store on an open badger handle.
func NewBadgerCursorStore(db *badger.DB, ttl time.Duration) *BadgerCursorStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &BadgerCursorStore{db: db, ttl: ttl}
}

// Save writes a cursor, refreshing its TTL.
func (s *BadgerCursorStore) Save(cursor *models.FeedCursor) error {
	data, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(cursorKeyPrefix+cursor.SessionID), data).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
}

// Load reads a cursor. Returns ErrSessionNotFound for missing or
// expired cursors.
func (s *BadgerCursorStore) Load(sessionID string) (*models.FeedCursor, error) {
	var cursor models.FeedCursor
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cursorKeyPrefix + sessionID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &cursor)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cursor, nil
}

// Delete removes a cursor. Deleting an absent cursor is a no-op.
func (s *BadgerCursorStore) Delete(sessionID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(cursorKeyPrefix + sessionID))
	})
}
