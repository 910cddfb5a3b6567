// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gemini provides the client for the Gemini text-completion API.
//
// The provider is treated as an opaque synchronous completion function:
// one prompt in, one complete text response out. No retry, no backoff,
// single-attempt semantics.
package gemini

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the Gemini client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeGeneration
	ErrTypeTimeout
	ErrTypeNotConfigured
)

// Sentinel errors for easy checking.
var (
	// ErrGeneration covers every provider-side generation failure. Finer
	// provider causes (safety block, quota, transport) are deliberately not
	// distinguished; callers handle them as one kind.
	ErrGeneration = &ClientError{Type: ErrTypeGeneration, Message: "generation failed"}

	ErrTimeout       = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrNotConfigured = &ClientError{Type: ErrTypeNotConfigured, Message: "missing API key"}
)

// IsGeneration reports whether err is a provider generation failure.
func IsGeneration(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeGeneration
	}
	return errors.Is(err, ErrGeneration)
}

// IsTimeout reports whether err is a timeout error.
func IsTimeout(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeTimeout
	}
	return errors.Is(err, ErrTimeout)
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the Gemini client.
type ClientConfig struct {
	// APIKey is the Gemini API credential. Required.
	APIKey string

	// Model is the model name (default: "gemini-1.5-flash").
	Model string

	// Timeout bounds a single generation call (default: 60s).
	Timeout time.Duration
}

// DefaultConfig returns the default client configuration (no credential).
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Model:   "gemini-1.5-flash",
		Timeout: 60 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// modelsAPI is the slice of the genai SDK the client depends on, narrowed
// for testability.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client handles communication with the Gemini API.
//
// The Client is safe for concurrent use.
type Client struct {
	config *ClientConfig
	models modelsAPI
}

// NewClient creates a Gemini client from the given configuration.
// It fails if the API key is missing.
func NewClient(ctx context.Context, config *ClientConfig) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Model == "" {
		config.Model = "gemini-1.5-flash"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	if strings.TrimSpace(config.APIKey) == "" {
		return nil, ErrNotConfigured
	}

	sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "failed to create client", Cause: err}
	}

	return &Client{config: config, models: sdk.Models}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.config.Model
}

// =============================================================================
// GENERATION
// =============================================================================

// Generate sends one prompt and returns the complete response text.
//
// The call blocks until the provider answers or the timeout elapses. Any
// provider-side failure is surfaced as ErrGeneration.
func (c *Client) Generate(ctx context.Context, promptText string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	resp, err := c.models.GenerateContent(callCtx, c.config.Model, genai.Text(promptText), nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		return "", &ClientError{Type: ErrTypeGeneration, Message: "generation failed", Cause: err}
	}

	text := visibleText(resp)
	if text == "" {
		// A response with no usable candidate (safety block, empty parts)
		// counts as a generation failure.
		return "", ErrGeneration
	}

	return text, nil
}

// visibleText concatenates the non-thought text parts of the first candidate.
func visibleText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}
