// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package memory holds in-process conversation history.
//
// History is append-only for the lifetime of the process: entries are never
// removed or reordered, and nothing is persisted across restarts. Every
// prompt sent to the model replays the full history verbatim, so insertion
// order is significant.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ENTRY
// =============================================================================

// Entry is one completed exchange: the user input and the model output.
// Entries are immutable once appended.
type Entry struct {
	Input  string    `json:"input"`
	Output string    `json:"output"`
	At     time.Time `json:"at"`
}

// =============================================================================
// STORE
// =============================================================================

// Store is an ordered, append-only conversation history.
//
// The Store is safe for concurrent use. Load returns a snapshot, so callers
// never observe an append that happens while they iterate.
type Store struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewStore creates an empty conversation store.
func NewStore() *Store {
	return &Store{}
}

// Append adds a new exchange at the end of the history. It never fails.
func (s *Store) Append(input, output string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, Entry{
		Input:  input,
		Output: output,
		At:     time.Now(),
	})
}

// Load returns a snapshot copy of the current history. It never fails and is
// idempotent: two calls without an intervening Append return equal slices.
func (s *Store) Load() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]Entry, len(s.entries))
	copy(snapshot, s.entries)
	return snapshot
}

// Len returns the number of entries in the history.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// =============================================================================
// SESSION STORE
// =============================================================================

// DefaultSession is the session used when a request carries no session ID.
// Clients that never send one all share it, which matches the original
// process-global history behavior.
const DefaultSession = "default"

// SessionStore maps session IDs to their conversation stores.
//
// Stores are created lazily on first use and live until process shutdown.
// There is no eviction and no size bound.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Store
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Store),
	}
}

// Get returns the store for the given session ID, creating it if needed.
// An empty ID resolves to DefaultSession.
func (ss *SessionStore) Get(id string) *Store {
	if id == "" {
		id = DefaultSession
	}

	ss.mu.RLock()
	s, ok := ss.sessions[id]
	ss.mu.RUnlock()
	if ok {
		return s
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	if s, ok = ss.sessions[id]; ok {
		return s
	}
	s = NewStore()
	ss.sessions[id] = s
	return s
}

// Create allocates a new session with a generated ID and returns both.
func (ss *SessionStore) Create() (string, *Store) {
	id := uuid.NewString()

	ss.mu.Lock()
	defer ss.mu.Unlock()
	s := NewStore()
	ss.sessions[id] = s
	return id, s
}

// Sessions returns the IDs of all known sessions.
func (ss *SessionStore) Sessions() []string {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	ids := make([]string, 0, len(ss.sessions))
	for id := range ss.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of known sessions.
func (ss *SessionStore) Count() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}
