// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the HTTP surface: the streaming generate
// endpoint, session management, history inspection, and operational
// endpoints for health and usage statistics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jeranaias/chatrelay/internal/config"
	"github.com/jeranaias/chatrelay/internal/gemini"
	"github.com/jeranaias/chatrelay/internal/memory"
	"github.com/jeranaias/chatrelay/internal/prompt"
	"github.com/jeranaias/chatrelay/internal/stats"
	"github.com/jeranaias/chatrelay/internal/stream"
)

// =============================================================================
// TYPES
// =============================================================================

// Generator produces a model reply for a fully rendered prompt. It is
// satisfied by *gemini.Client and by test fakes.
type Generator interface {
	Generate(ctx context.Context, promptText string) (string, error)
}

// Server is the HTTP API server. Create with NewServer, then Start.
type Server struct {
	cfg       *config.Config
	router    *http.ServeMux
	server    *http.Server
	generator Generator
	sessions  *memory.SessionStore
	chunker   *stream.Chunker
	counters  *stats.Counters
	ledger    *stats.Ledger
	logger    *slog.Logger
}

// generateRequest is the body of POST /generate.
type generateRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// detailResponse mirrors the error envelope clients already parse:
// a single "detail" field with a fixed message per failure class.
type detailResponse struct {
	Detail string `json:"detail"`
}

const (
	detailGeneration = "AI generation error."
	detailInternal   = "Internal server error."
)

// =============================================================================
// CONSTRUCTION
// =============================================================================

// NewServer creates a server with the given configuration and provider.
func NewServer(cfg *config.Config, generator Generator) *Server {
	s := &Server{
		cfg:       cfg,
		router:    http.NewServeMux(),
		generator: generator,
		sessions:  memory.NewSessionStore(),
		chunker:   &stream.Chunker{Threshold: cfg.ChunkThreshold, Delay: cfg.PacingDelay()},
		counters:  stats.NewCounters(),
		logger:    slog.Default(),
	}
	s.routes()
	return s
}

// WithLogger sets the logger used by the server and its middleware.
func (s *Server) WithLogger(logger *slog.Logger) *Server {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithLedger attaches a persistent usage ledger. A nil or disabled
// ledger is valid; records are simply not persisted.
func (s *Server) WithLedger(ledger *stats.Ledger) *Server {
	s.ledger = ledger
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("POST /generate", s.handleGenerate)
	s.router.HandleFunc("POST /sessions", s.handleCreateSession)
	s.router.HandleFunc("GET /history", s.handleHistory)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /stats", s.handleStats)
}

// Handler returns the full handler with middleware applied. Exposed so
// tests can drive the server through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	chain := []Middleware{
		RecoveryMiddleware(s.logger),
		LoggingMiddleware(s.logger),
		CORSMiddleware(),
	}
	if s.cfg.RateLimitPerMinute > 0 {
		chain = append(chain, RateLimitMiddleware(NewRateLimiter(s.cfg.RateLimitPerMinute), s.logger))
	}
	return Chain(s.router, chain...)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Start begins listening on the configured address. Blocks until the
// server stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
		// WriteTimeout bounds the whole response, including the paced
		// stream, so it must comfortably exceed the provider timeout.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.cfg.RequestTimeout() + 60*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("server listening",
		"addr", s.cfg.Addr,
		"model", s.cfg.Model,
	)

	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, letting in-flight streams
// finish within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// =============================================================================
// HANDLERS
// =============================================================================

// handleGenerate runs the full relay cycle: load history for the
// session, build the prompt, call the provider, record the exchange,
// then stream the reply back in paced chunks. Nothing is written to
// the stream, and nothing is recorded, unless generation succeeds.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("malformed generate request", "error", err)
		s.failGenerate(w, r, stats.OutcomeInternal, detailInternal, start, req.SessionID)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = memory.DefaultSession
	}
	store := s.sessions.Get(sessionID)
	history := store.Load()
	promptText := prompt.Build(history, req.Query)

	text, err := s.generator.Generate(ctx, promptText)
	if err != nil {
		if gemini.IsGeneration(err) {
			s.logger.Error("generation failed", "session", sessionID, "error", err)
			s.failGenerate(w, r, stats.OutcomeGeneration, detailGeneration, start, sessionID)
		} else {
			s.logger.Error("generate request failed", "session", sessionID, "error", err)
			s.failGenerate(w, r, stats.OutcomeInternal, detailInternal, start, sessionID)
		}
		return
	}

	// The exchange is committed before streaming begins; a client that
	// disconnects mid-stream still has the turn in its history.
	store.Append(req.Query, text)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, canFlush := w.(http.Flusher)

	chunks := 0
	var bytes int64
	err = s.chunker.Stream(ctx, text, func(chunk string) error {
		n, werr := fmt.Fprintf(w, "%s\n\n", chunk)
		if werr != nil {
			return werr
		}
		if canFlush {
			flusher.Flush()
		}
		chunks++
		bytes += int64(n)
		return nil
	})
	outcome := stats.OutcomeOK
	if err != nil {
		// Headers are gone; all we can do is log and account for what
		// was delivered before the stream broke.
		s.logger.Warn("stream interrupted", "session", sessionID, "chunks", chunks, "error", err)
		outcome = stats.OutcomeTruncated
	}

	if outcome == stats.OutcomeOK {
		s.counters.RecordSuccess(chunks, bytes)
	} else {
		s.counters.RecordTruncated(chunks, bytes)
	}
	s.appendLedger(r, stats.Record{
		Session:       sessionID,
		Outcome:       outcome,
		LatencyMS:     time.Since(start).Milliseconds(),
		Chunks:        chunks,
		ResponseBytes: bytes,
	})
}

// handleCreateSession mints a fresh conversation session.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, _ := s.sessions.Create()
	s.logger.Info("session created", "session", id)
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

// handleHistory returns the recorded turns for a session. An unknown
// session is indistinguishable from an empty one.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = memory.DefaultSession
	}
	entries := s.sessions.Get(sessionID).Load()
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"length":     len(entries),
		"entries":    entries,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"model":    s.cfg.Model,
		"sessions": s.sessions.Count(),
		"ledger":   s.ledger.Enabled(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.counters.Get()
	body := map[string]any{
		"uptime_seconds":      int64(s.counters.Uptime().Seconds()),
		"total_requests":      snap.TotalRequests,
		"truncated_streams":   snap.TruncatedStreams,
		"generation_failures": snap.GenerationFailures,
		"internal_failures":   snap.InternalFailures,
		"chunks_emitted":      snap.ChunksEmitted,
		"response_bytes":      snap.ResponseBytes,
		"ledger_persistent":   s.ledger.Enabled(),
	}
	if s.ledger.Enabled() {
		if n, err := s.ledger.Count(r.Context()); err == nil {
			body["ledger_records"] = n
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// =============================================================================
// HELPERS
// =============================================================================

// failGenerate emits the fixed error envelope for a failed generate
// request and records the failure.
func (s *Server) failGenerate(w http.ResponseWriter, r *http.Request, outcome, detail string, start time.Time, session string) {
	if session == "" {
		session = memory.DefaultSession
	}
	s.counters.RecordFailure(outcome)
	s.appendLedger(r, stats.Record{
		Session:   session,
		Outcome:   outcome,
		LatencyMS: time.Since(start).Milliseconds(),
	})
	writeJSON(w, http.StatusInternalServerError, detailResponse{Detail: detail})
}

func (s *Server) appendLedger(r *http.Request, rec stats.Record) {
	if !s.ledger.Enabled() {
		return
	}
	// Ledger writes ride on a short background context so a client
	// disconnect cannot lose the record.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.ledger.Append(ctx, rec); err != nil {
		s.logger.Warn("ledger append failed", "error", err)
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
