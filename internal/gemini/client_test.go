// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/genai"
)

// fakeModels implements modelsAPI for tests.
type fakeModels struct {
	resp *genai.GenerateContentResponse
	err  error

	gotModel  string
	gotPrompt string
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	if len(contents) > 0 && contents[0] != nil && len(contents[0].Parts) > 0 {
		f.gotPrompt = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{{Text: text}},
				},
			},
		},
	}
}

func testClient(models modelsAPI) *Client {
	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	return &Client{config: cfg, models: models}
}

// =============================================================================
// CONFIGURATION TESTS
// =============================================================================

func TestNewClient_MissingKey(t *testing.T) {
	_, err := NewClient(context.Background(), &ClientConfig{})

	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("NewClient() error = %v, want ErrNotConfigured", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model != "gemini-1.5-flash" {
		t.Errorf("Model = %q, want gemini-1.5-flash", cfg.Model)
	}
	if cfg.Timeout != 60*time.Second {
		t.Errorf("Timeout = %v, want 60s", cfg.Timeout)
	}
}

// =============================================================================
// GENERATION TESTS
// =============================================================================

func TestClient_Generate(t *testing.T) {
	fake := &fakeModels{resp: textResponse("Hi there")}
	c := testClient(fake)

	got, err := c.Generate(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "Hi there" {
		t.Errorf("Generate() = %q, want %q", got, "Hi there")
	}
	if fake.gotModel != "gemini-1.5-flash" {
		t.Errorf("model sent = %q, want gemini-1.5-flash", fake.gotModel)
	}
	if fake.gotPrompt != "Hello" {
		t.Errorf("prompt sent = %q, want %q", fake.gotPrompt, "Hello")
	}
}

func TestClient_GenerateProviderError(t *testing.T) {
	fake := &fakeModels{err: errors.New("quota exceeded")}
	c := testClient(fake)

	_, err := c.Generate(context.Background(), "Hello")
	if err == nil {
		t.Fatal("Generate() should fail when the provider fails")
	}
	if !IsGeneration(err) {
		t.Errorf("error %v should classify as a generation failure", err)
	}
}

func TestClient_GenerateEmptyCandidates(t *testing.T) {
	fake := &fakeModels{resp: &genai.GenerateContentResponse{}}
	c := testClient(fake)

	_, err := c.Generate(context.Background(), "Hello")
	if !IsGeneration(err) {
		t.Errorf("empty candidates should classify as a generation failure, got %v", err)
	}
}

func TestClient_GenerateSkipsThoughtParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{
						{Text: "internal planning", Thought: true},
						{Text: "visible answer"},
					},
				},
			},
		},
	}
	c := testClient(&fakeModels{resp: resp})

	got, err := c.Generate(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "visible answer" {
		t.Errorf("Generate() = %q, want thought parts skipped", got)
	}
}

// =============================================================================
// ERROR CLASSIFICATION TESTS
// =============================================================================

func TestIsGeneration(t *testing.T) {
	if !IsGeneration(ErrGeneration) {
		t.Error("IsGeneration(ErrGeneration) = false")
	}
	if !IsGeneration(&ClientError{Type: ErrTypeGeneration, Message: "x"}) {
		t.Error("IsGeneration should match any generation-typed ClientError")
	}
	if IsGeneration(ErrTimeout) {
		t.Error("IsGeneration(ErrTimeout) = true")
	}
	if IsGeneration(errors.New("other")) {
		t.Error("IsGeneration(plain error) = true")
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(ErrTimeout) {
		t.Error("IsTimeout(ErrTimeout) = false")
	}
	if IsTimeout(ErrGeneration) {
		t.Error("IsTimeout(ErrGeneration) = true")
	}
}

func TestClientError_Unwrap(t *testing.T) {
	cause := errors.New("network down")
	err := &ClientError{Type: ErrTypeGeneration, Message: "generation failed", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("ClientError should unwrap to its cause")
	}
	if err.Error() != "generation failed: network down" {
		t.Errorf("Error() = %q", err.Error())
	}
}
