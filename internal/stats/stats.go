// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stats tracks request usage for the /stats endpoint and optionally
// persists a per-request ledger to SQLite.
//
// Conversation content is never written here: the ledger records outcomes,
// latencies, and sizes only.
package stats

import (
	"sync"
	"time"
)

// =============================================================================
// OUTCOMES
// =============================================================================

// Request outcomes recorded in the ledger.
const (
	OutcomeOK         = "ok"
	OutcomeTruncated  = "truncated"
	OutcomeGeneration = "generation_error"
	OutcomeInternal   = "internal_error"
)

// =============================================================================
// COUNTERS
// =============================================================================

// Counters tracks in-memory usage statistics.
type Counters struct {
	mu sync.Mutex

	totalRequests      int64
	truncatedStreams   int64
	generationFailures int64
	internalFailures   int64
	chunksEmitted      int64
	responseBytes      int64
	startTime          time.Time
}

// NewCounters creates a zeroed Counters with the start time set.
func NewCounters() *Counters {
	return &Counters{startTime: time.Now()}
}

// RecordSuccess records one completed request.
func (c *Counters) RecordSuccess(chunks int, responseBytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRequests++
	c.chunksEmitted += int64(chunks)
	c.responseBytes += responseBytes
}

// RecordTruncated records a request whose stream was cut short after the
// provider answered. The chunks and bytes that were delivered still count.
func (c *Counters) RecordTruncated(chunks int, responseBytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRequests++
	c.truncatedStreams++
	c.chunksEmitted += int64(chunks)
	c.responseBytes += responseBytes
}

// RecordFailure records one failed request under the given outcome.
func (c *Counters) RecordFailure(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRequests++
	switch outcome {
	case OutcomeGeneration:
		c.generationFailures++
	default:
		c.internalFailures++
	}
}

// Snapshot is a copy of the current counter values.
type Snapshot struct {
	TotalRequests      int64     `json:"total_requests"`
	TruncatedStreams   int64     `json:"truncated_streams"`
	GenerationFailures int64     `json:"generation_failures"`
	InternalFailures   int64     `json:"internal_failures"`
	ChunksEmitted      int64     `json:"chunks_emitted"`
	ResponseBytes      int64     `json:"response_bytes"`
	StartTime          time.Time `json:"start_time"`
}

// Get returns a copy of the current stats.
func (c *Counters) Get() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		TotalRequests:      c.totalRequests,
		TruncatedStreams:   c.truncatedStreams,
		GenerationFailures: c.generationFailures,
		InternalFailures:   c.internalFailures,
		ChunksEmitted:      c.chunksEmitted,
		ResponseBytes:      c.responseBytes,
		StartTime:          c.startTime,
	}
}

// Uptime returns the time since the counters were created.
func (c *Counters) Uptime() time.Duration {
	return time.Since(c.startTime)
}
