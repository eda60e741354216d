// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package cache

import (
	"testing"
	"time"
)

func TestMinHeap_PopOrder(t *testing.T) {
	h := NewMinHeap[int](0)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// Insert out of order.
	h.Push("c", 3, base.Add(3*time.Second))
	h.Push("a", 1, base.Add(1*time.Second))
	h.Push("d", 4, base.Add(4*time.Second))
	h.Push("b", 2, base.Add(2*time.Second))

	for i, want := range []string{"a", "b", "c", "d"} {
		entry := h.Pop()
		if entry == nil {
			t.Fatalf("Pop %d returned nil", i)
		}
		if entry.Key != want {
			t.Errorf("Pop %d = %s, want %s", i, entry.Key, want)
		}
	}

	if h.Pop() != nil {
		t.Error("Pop on empty heap should return nil")
	}
}

func TestMinHeap_PushUpdatesExisting(t *testing.T) {
	h := NewMinHeap[int](0)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	h.Push("a", 1, base.Add(1*time.Second))
	h.Push("b", 2, base.Add(2*time.Second))

	// Re-push "a" with a later timestamp; it moves behind "b".
	h.Push("a", 10, base.Add(5*time.Second))

	if h.Len() != 2 {
		t.Fatalf("Len = %d, want 2", h.Len())
	}
	if got := h.Pop(); got.Key != "b" {
		t.Errorf("first Pop = %s, want b", got.Key)
	}
	got := h.Pop()
	if got.Key != "a" || got.Value != 10 {
		t.Errorf("second Pop = %s/%d, want a/10", got.Key, got.Value)
	}
}

func TestMinHeap_PopBefore(t *testing.T) {
	h := NewMinHeap[string](0)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		h.Push(string(rune('a'+i)), "", base.Add(time.Duration(i)*time.Minute))
	}

	expired := h.PopBefore(base.Add(5 * time.Minute))
	if len(expired) != 5 {
		t.Fatalf("PopBefore returned %d entries, want 5", len(expired))
	}
	for i := 1; i < len(expired); i++ {
		if expired[i].Timestamp.Before(expired[i-1].Timestamp) {
			t.Errorf("PopBefore entries not ordered oldest first at %d", i)
		}
	}
	if h.Len() != 5 {
		t.Errorf("Len after PopBefore = %d, want 5", h.Len())
	}
}

func TestMinHeap_Remove(t *testing.T) {
	h := NewMinHeap[int](0)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	h.Push("a", 1, base.Add(1*time.Second))
	h.Push("b", 2, base.Add(2*time.Second))
	h.Push("c", 3, base.Add(3*time.Second))

	if removed := h.Remove("b"); removed == nil || removed.Key != "b" {
		t.Fatalf("Remove(b) = %v", removed)
	}
	if h.Remove("b") != nil {
		t.Error("second Remove(b) should return nil")
	}
	if h.Get("b") != nil {
		t.Error("Get(b) after Remove should return nil")
	}

	// Heap property holds after internal removal.
	if got := h.Pop(); got.Key != "a" {
		t.Errorf("Pop = %s, want a", got.Key)
	}
	if got := h.Pop(); got.Key != "c" {
		t.Errorf("Pop = %s, want c", got.Key)
	}
}

func TestMinHeap_MaxLenEvictsOldest(t *testing.T) {
	h := NewMinHeap[int](3)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if evicted := h.Push(string(rune('a'+i)), i, base.Add(time.Duration(i)*time.Second)); evicted != nil {
			t.Fatalf("unexpected eviction at %d", i)
		}
	}

	evicted := h.Push("d", 3, base.Add(3*time.Second))
	if evicted == nil || evicted.Key != "a" {
		t.Fatalf("Push past capacity evicted %v, want a", evicted)
	}
	if h.Len() != 3 {
		t.Errorf("Len = %d, want 3", h.Len())
	}
}

func TestMinHeap_Peek(t *testing.T) {
	h := NewMinHeap[int](0)
	if h.Peek() != nil {
		t.Error("Peek on empty heap should return nil")
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h.Push("b", 2, base.Add(2*time.Second))
	h.Push("a", 1, base.Add(1*time.Second))

	if got := h.Peek(); got.Key != "a" {
		t.Errorf("Peek = %s, want a", got.Key)
	}
	if h.Len() != 2 {
		t.Errorf("Peek must not remove: Len = %d, want 2", h.Len())
	}
}
