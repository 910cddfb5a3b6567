// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package memory

import (
	"fmt"
	"sync"
	"testing"
)

// =============================================================================
// STORE TESTS
// =============================================================================

func TestStore_AppendIncrementsLength(t *testing.T) {
	s := NewStore()

	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}

	s.Append("Hello", "Hi there")

	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}

	entries := s.Load()
	if entries[0].Input != "Hello" {
		t.Errorf("Input = %q, want %q", entries[0].Input, "Hello")
	}
	if entries[0].Output != "Hi there" {
		t.Errorf("Output = %q, want %q", entries[0].Output, "Hi there")
	}
	if entries[0].At.IsZero() {
		t.Error("At should be set")
	}
}

func TestStore_OrderPreserved(t *testing.T) {
	s := NewStore()

	for i := 0; i < 10; i++ {
		s.Append(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	entries := s.Load()
	if len(entries) != 10 {
		t.Fatalf("Load() returned %d entries, want 10", len(entries))
	}

	for i, e := range entries {
		if e.Input != fmt.Sprintf("q%d", i) {
			t.Errorf("entry %d: Input = %q, want q%d", i, e.Input, i)
		}
	}
}

func TestStore_LoadIdempotent(t *testing.T) {
	s := NewStore()
	s.Append("Hello", "Hi")

	first := s.Load()
	second := s.Load()

	if len(first) != len(second) {
		t.Fatalf("snapshots differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("entry %d differs between snapshots", i)
		}
	}
}

func TestStore_LoadReturnsSnapshot(t *testing.T) {
	s := NewStore()
	s.Append("a", "b")

	snapshot := s.Load()
	s.Append("c", "d")

	if len(snapshot) != 1 {
		t.Errorf("snapshot grew after Append: len = %d, want 1", len(snapshot))
	}
}

func TestStore_ConcurrentAppend(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Append(fmt.Sprintf("q%d", n), "a")
			s.Load()
		}(i)
	}
	wg.Wait()

	if s.Len() != 50 {
		t.Errorf("Len() = %d, want 50 (lost updates)", s.Len())
	}
}

// =============================================================================
// SESSION STORE TESTS
// =============================================================================

func TestSessionStore_EmptyIDIsDefault(t *testing.T) {
	ss := NewSessionStore()

	a := ss.Get("")
	b := ss.Get(DefaultSession)

	if a != b {
		t.Error("empty session ID should resolve to the default session")
	}
}

func TestSessionStore_IsolatedHistories(t *testing.T) {
	ss := NewSessionStore()

	ss.Get("alice").Append("hi", "hello alice")
	ss.Get("bob").Append("hi", "hello bob")

	if got := ss.Get("alice").Len(); got != 1 {
		t.Errorf("alice history length = %d, want 1", got)
	}
	if out := ss.Get("bob").Load()[0].Output; out != "hello bob" {
		t.Errorf("bob sees %q, want %q", out, "hello bob")
	}
}

func TestSessionStore_Create(t *testing.T) {
	ss := NewSessionStore()

	id, s := ss.Create()
	if id == "" {
		t.Fatal("Create() returned empty session ID")
	}
	if s == nil {
		t.Fatal("Create() returned nil store")
	}

	if ss.Get(id) != s {
		t.Error("Get should return the store created for this ID")
	}

	id2, _ := ss.Create()
	if id == id2 {
		t.Error("Create() returned duplicate session IDs")
	}

	if ss.Count() != 2 {
		t.Errorf("Count() = %d, want 2", ss.Count())
	}
}

func TestSessionStore_Sessions(t *testing.T) {
	ss := NewSessionStore()
	ss.Get("x")
	ss.Get("y")

	ids := ss.Sessions()
	if len(ids) != 2 {
		t.Fatalf("Sessions() returned %d ids, want 2", len(ids))
	}

	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen["x"] || !seen["y"] {
		t.Errorf("Sessions() = %v, want x and y", ids)
	}
}
