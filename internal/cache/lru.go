// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package cache

import (
	"container/list"
	"sync"
	"time"
)

// lruItem is the value stored in the eviction list.
type lruItem[V any] struct {
	key      string
	value    V
	expireAt time.Time
}

// LRU is a thread-safe LRU cache with per-entry TTL.
//
// It serves two jobs in the engagement core: suppressing replayed event
// IDs (value struct{}) and caching creator-channel responses for a few
// seconds. Expired entries are dropped lazily on access.
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List // front = most recently used
}

// NewLRU creates an LRU with the given capacity and TTL.
// A TTL of 0 disables expiration.
func NewLRU[V any](capacity int, ttl time.Duration) *LRU[V] {
	return &LRU[V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Add inserts or refreshes an entry, evicting the least recently used
// entry when the cache is full.
func (c *LRU[V]) Add(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expireAt time.Time
	if c.ttl > 0 {
		expireAt = time.Now().Add(c.ttl)
	}

	if el, ok := c.items[key]; ok {
		item := el.Value.(*lruItem[V])
		item.value = value
		item.expireAt = expireAt
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&lruItem[V]{key: key, value: value, expireAt: expireAt})
	c.items[key] = el

	if c.capacity > 0 && c.order.Len() > c.capacity {
		c.evictOldest()
	}
}

// Get returns the value for key and marks it most recently used.
// The second return is false when the key is absent or expired.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}

	item := el.Value.(*lruItem[V])
	if !item.expireAt.IsZero() && time.Now().After(item.expireAt) {
		c.removeElement(el)
		return zero, false
	}

	c.order.MoveToFront(el)
	return item.value, true
}

// Seen records the key and reports whether it was already present and
// unexpired. Used for duplicate suppression.
func (c *LRU[V]) Seen(key string) bool {
	if _, ok := c.Get(key); ok {
		return true
	}
	var zero V
	c.Add(key, zero)
	return false
}

// Remove deletes an entry. Returns true if the key was present.
func (c *LRU[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(el)
	return true
}

// Len returns the number of entries, including any not yet lazily expired.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear removes all entries.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.capacity)
	c.order.Init()
}

// evictOldest removes the least recently used entry (lock held).
func (c *LRU[V]) evictOldest() {
	if el := c.order.Back(); el != nil {
		c.removeElement(el)
	}
}

// removeElement removes an element from both structures (lock held).
func (c *LRU[V]) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*lruItem[V]).key)
}
