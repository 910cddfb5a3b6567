// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stats

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// LEDGER
// =============================================================================

// Record is one completed request in the ledger.
type Record struct {
	Session       string
	Outcome       string
	LatencyMS     int64
	Chunks        int
	ResponseBytes int64
}

// Ledger persists per-request usage rows to SQLite.
//
// A Ledger opened with an empty path is a no-op: Append and Close succeed,
// Count reports zero. This keeps the call sites free of nil checks when
// persistence is disabled.
type Ledger struct {
	db *sql.DB
	mu sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS requests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session TEXT NOT NULL,
	outcome TEXT NOT NULL,
	latency_ms INTEGER NOT NULL,
	chunks INTEGER NOT NULL,
	response_bytes INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_requests_session ON requests(session);
CREATE INDEX IF NOT EXISTS idx_requests_created ON requests(created_at);
`

// OpenLedger opens (and migrates) the ledger database at path.
// An empty path returns a disabled no-op ledger.
func OpenLedger(path string) (*Ledger, error) {
	if path == "" {
		return &Ledger{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Enabled reports whether the ledger persists rows. A nil ledger is a
// valid disabled ledger.
func (l *Ledger) Enabled() bool {
	return l != nil && l.db != nil
}

// Append writes one request record.
func (l *Ledger) Append(ctx context.Context, r Record) error {
	if !l.Enabled() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO requests (session, outcome, latency_ms, chunks, response_bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.Session, r.Outcome, r.LatencyMS, r.Chunks, r.ResponseBytes, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("append ledger record: %w", err)
	}
	return nil
}

// Count returns the number of persisted records.
func (l *Ledger) Count(ctx context.Context) (int64, error) {
	if !l.Enabled() {
		return 0, nil
	}

	var n int64
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM requests`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count ledger records: %w", err)
	}
	return n, nil
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	if !l.Enabled() {
		return nil
	}
	return l.db.Close()
}
