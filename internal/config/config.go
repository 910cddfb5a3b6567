// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and validation for chatrelay.
//
// Precedence, lowest to highest:
//   - Built-in defaults
//   - Optional TOML config file
//   - Environment variables (a .env file is honored if present)
//
// The provider credential (GEMINI_API_KEY) is required: without it the
// process refuses to start.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ErrMissingAPIKey is returned when no provider credential is configured.
var ErrMissingAPIKey = errors.New("Gemini API key not found: set GEMINI_API_KEY in the environment or .env file")

// =============================================================================
// CONFIG STRUCTURE
// =============================================================================

// Config represents the complete chatrelay configuration.
type Config struct {
	// Addr is the listen address for the HTTP server.
	Addr string `toml:"addr" envconfig:"CHATRELAY_ADDR"`

	// GeminiAPIKey is the provider credential. Required.
	// Kept out of the TOML file so the secret lives only in the environment.
	GeminiAPIKey string `toml:"-" envconfig:"GEMINI_API_KEY"`

	// Model is the Gemini model name.
	Model string `toml:"model" envconfig:"CHATRELAY_MODEL"`

	// ChunkThreshold is the character count that triggers a chunk flush.
	ChunkThreshold int `toml:"chunk_threshold" envconfig:"CHATRELAY_CHUNK_THRESHOLD"`

	// PacingDelayMS is the pause between streamed chunks, in milliseconds.
	PacingDelayMS int `toml:"pacing_delay_ms" envconfig:"CHATRELAY_PACING_DELAY_MS"`

	// RequestTimeoutSecs bounds a single provider call.
	RequestTimeoutSecs int `toml:"request_timeout_secs" envconfig:"CHATRELAY_REQUEST_TIMEOUT_SECS"`

	// RateLimitPerMinute is the per-IP request budget. Zero disables limiting.
	RateLimitPerMinute int `toml:"rate_limit_per_minute" envconfig:"CHATRELAY_RATE_LIMIT_PER_MINUTE"`

	// MaxBodyBytes caps the request body size.
	MaxBodyBytes int64 `toml:"max_body_bytes" envconfig:"CHATRELAY_MAX_BODY_BYTES"`

	// Log configuration.
	LogLevel  string `toml:"log_level" envconfig:"CHATRELAY_LOG_LEVEL"`
	LogFormat string `toml:"log_format" envconfig:"CHATRELAY_LOG_FORMAT"`
	LogFile   string `toml:"log_file" envconfig:"CHATRELAY_LOG_FILE"`

	// StatsDBPath is the SQLite file for the usage ledger. Empty disables
	// persistence; in-memory counters still run.
	StatsDBPath string `toml:"stats_db_path" envconfig:"CHATRELAY_STATS_DB"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Addr:               "127.0.0.1:8000",
		Model:              "gemini-1.5-flash",
		ChunkThreshold:     20,
		PacingDelayMS:      50,
		RequestTimeoutSecs: 60,
		RateLimitPerMinute: 100,
		MaxBodyBytes:       1 * 1024 * 1024,
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// =============================================================================
// LOADING
// =============================================================================

// Load builds the runtime configuration.
//
// A .env file in the working directory is loaded into the environment first
// (missing file is fine), then the optional TOML file at path (empty path or
// missing file is fine), then environment overrides, then validation.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("environment config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadTOML overlays values from a TOML file onto cfg.
// A missing file leaves cfg untouched.
func LoadTOML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the configuration for fatal problems.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.GeminiAPIKey) == "" {
		return ErrMissingAPIKey
	}
	if c.Addr == "" {
		return errors.New("listen address must not be empty")
	}
	if c.ChunkThreshold <= 0 {
		return fmt.Errorf("chunk_threshold must be positive, got %d", c.ChunkThreshold)
	}
	if c.PacingDelayMS < 0 {
		return fmt.Errorf("pacing_delay_ms must not be negative, got %d", c.PacingDelayMS)
	}
	if c.RequestTimeoutSecs <= 0 {
		return fmt.Errorf("request_timeout_secs must be positive, got %d", c.RequestTimeoutSecs)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive, got %d", c.MaxBodyBytes)
	}
	return nil
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// PacingDelay returns the chunk pacing delay as a duration.
func (c *Config) PacingDelay() time.Duration {
	return time.Duration(c.PacingDelayMS) * time.Millisecond
}

// RequestTimeout returns the provider call timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}
