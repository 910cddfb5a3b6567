// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream splits a complete model response into word-aligned chunks
// and emits them with fixed pacing delays.
//
// The provider call is synchronous, so the full response text is available
// before streaming begins; the pacing here simulates incremental delivery
// rather than reflecting provider-side streaming.
package stream

import (
	"context"
	"strings"
	"time"
)

const (
	// DefaultThreshold is the accumulated chunk length, in characters, that
	// triggers a flush.
	DefaultThreshold = 20

	// DefaultDelay is the pause between flushed chunks.
	DefaultDelay = 50 * time.Millisecond
)

// =============================================================================
// CHUNKER
// =============================================================================

// Chunker produces word-boundary-aligned chunks from response text.
type Chunker struct {
	// Threshold is the character count above which the accumulated buffer
	// is flushed. Zero means DefaultThreshold.
	Threshold int

	// Delay is the pacing pause between chunks. Zero means DefaultDelay.
	Delay time.Duration
}

// New returns a Chunker with default threshold and delay.
func New() *Chunker {
	return &Chunker{Threshold: DefaultThreshold, Delay: DefaultDelay}
}

func (c *Chunker) threshold() int {
	if c.Threshold <= 0 {
		return DefaultThreshold
	}
	return c.Threshold
}

func (c *Chunker) delay() time.Duration {
	if c.Delay <= 0 {
		return DefaultDelay
	}
	return c.Delay
}

// Chunks splits text into its chunk sequence without pacing.
//
// Words are accumulated greedily with a trailing space until the buffer
// length exceeds the threshold, then the trimmed buffer is flushed. A final
// partial buffer is flushed if non-empty. Text with zero words yields zero
// chunks; text at or under the threshold yields exactly one chunk.
func (c *Chunker) Chunks(text string) []string {
	var chunks []string
	var buffer strings.Builder

	for _, word := range strings.Fields(text) {
		buffer.WriteString(word)
		buffer.WriteString(" ")
		if buffer.Len() > c.threshold() {
			chunks = append(chunks, strings.TrimSpace(buffer.String()))
			buffer.Reset()
		}
	}

	if buffer.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(buffer.String()))
	}

	return chunks
}

// Stream emits each chunk through emit, pausing Delay between chunks.
//
// The loop is cancellable: at every pacing pause it selects on ctx, so a
// client disconnect stops emission at the next suspension point. Emission
// also stops if emit returns an error (broken connection). Chunks already
// emitted are not rolled back.
func (c *Chunker) Stream(ctx context.Context, text string, emit func(chunk string) error) error {
	chunks := c.Chunks(text)

	for i, chunk := range chunks {
		if err := emit(chunk); err != nil {
			return err
		}

		// No pause after the final chunk.
		if i == len(chunks)-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.delay()):
		}
	}

	return nil
}
