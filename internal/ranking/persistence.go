// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package ranking

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/reelpulse/reelpulse/internal/models"
)

// boardKeyPrefix namespaces board materializations in badger. One record
// per scope, overwritten each refresh.
const boardKeyPrefix = "rankings:"

// persistedBoard is the durable form of one board scope.
type persistedBoard struct {
	Epoch   int64                 `json:"epoch"`
	Entries []models.VideoSummary `json:"entries"`
}

// BadgerBoardStore keeps the latest materialization of each board scope
// in badger so a restart can serve rankings before the first sweep.
type BadgerBoardStore struct {
	db *badger.DB
}

// NewBadgerBoardStore creates a board store on an open badger handle.
func NewBadgerBoardStore(db *badger.DB) *BadgerBoardStore {
	return &BadgerBoardStore{db: db}
}

// SaveBoards writes every scope of a materialization in one transaction.
// Scopes absent from the new materialization are deleted so a restart
// never warm-starts a board that no longer exists.
func (b *BadgerBoardStore) SaveBoards(epoch int64, boards map[string][]models.VideoSummary) error {
	return b.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(boardKeyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if _, live := boards[string(key[len(boardKeyPrefix):])]; !live {
				stale = append(stale, key)
			}
		}
		it.Close()
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		for scope, entries := range boards {
			data, err := json.Marshal(persistedBoard{Epoch: epoch, Entries: entries})
			if err != nil {
				return fmt.Errorf("marshal board %s: %w", scope, err)
			}
			if err := txn.Set([]byte(boardKeyPrefix+scope), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadBoards reads the persisted materialization. Returns the boards and
// the highest epoch seen, or empty boards when nothing was persisted.
func (b *BadgerBoardStore) LoadBoards() (map[string][]models.VideoSummary, int64, error) {
	boards := make(map[string][]models.VideoSummary)
	var epoch int64

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(boardKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			scope := string(item.Key()[len(boardKeyPrefix):])
			err := item.Value(func(val []byte) error {
				var rec persistedBoard
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("unmarshal board %s: %w", scope, err)
				}
				boards[scope] = rec.Entries
				if rec.Epoch > epoch {
					epoch = rec.Epoch
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return boards, epoch, nil
}
