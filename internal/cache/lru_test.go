// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package cache

import (
	"testing"
	"time"
)

func TestLRU_AddGet(t *testing.T) {
	c := NewLRU[int](10, 0)

	c.Add("a", 1)
	c.Add("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d/%v, want 1/true", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) should report absent")
	}
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](3, 0)

	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)

	// Touch "a" so "b" is the coldest.
	c.Get("a")
	c.Add("d", 4)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should still be present", k)
		}
	}
}

func TestLRU_AddRefreshesExisting(t *testing.T) {
	c := NewLRU[int](2, 0)

	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("a", 10) // refresh, not insert

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if v, _ := c.Get("a"); v != 10 {
		t.Errorf("Get(a) = %d, want 10", v)
	}

	// "a" was refreshed most recently, so "b" goes first.
	c.Add("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
}

func TestLRU_TTLExpiry(t *testing.T) {
	c := NewLRU[int](10, 20*time.Millisecond)

	c.Add("a", 1)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("fresh entry should be present")
	}

	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Error("expired entry should be gone")
	}
}

func TestLRU_Seen(t *testing.T) {
	c := NewLRU[struct{}](10, 0)

	if c.Seen("evt-1") {
		t.Error("first Seen(evt-1) should be false")
	}
	if !c.Seen("evt-1") {
		t.Error("second Seen(evt-1) should be true")
	}
	if c.Seen("evt-2") {
		t.Error("Seen(evt-2) should be false")
	}
}

func TestLRU_RemoveAndClear(t *testing.T) {
	c := NewLRU[int](10, 0)

	c.Add("a", 1)
	if !c.Remove("a") {
		t.Error("Remove(a) should report present")
	}
	if c.Remove("a") {
		t.Error("second Remove(a) should report absent")
	}

	c.Add("b", 2)
	c.Add("c", 3)
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", c.Len())
	}
}
