// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1:8000", cfg.Addr)
	assert.Equal(t, "gemini-1.5-flash", cfg.Model)
	assert.Equal(t, 20, cfg.ChunkThreshold)
	assert.Equal(t, 50, cfg.PacingDelayMS)
	assert.Empty(t, cfg.GeminiAPIKey, "no credential by default")
}

func TestValidate_MissingAPIKeyIsFatal(t *testing.T) {
	cfg := Default()

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
}

func TestValidate_WithKey(t *testing.T) {
	cfg := Default()
	cfg.GeminiAPIKey = "test-key"

	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"blank key", func(c *Config) { c.GeminiAPIKey = "   " }},
		{"empty addr", func(c *Config) { c.Addr = "" }},
		{"zero threshold", func(c *Config) { c.ChunkThreshold = 0 }},
		{"negative delay", func(c *Config) { c.PacingDelayMS = -1 }},
		{"zero timeout", func(c *Config) { c.RequestTimeoutSecs = 0 }},
		{"zero body cap", func(c *Config) { c.MaxBodyBytes = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.GeminiAPIKey = "test-key"
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("CHATRELAY_MODEL", "gemini-1.5-pro")
	t.Setenv("CHATRELAY_CHUNK_THRESHOLD", "40")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.GeminiAPIKey)
	assert.Equal(t, "gemini-1.5-pro", cfg.Model)
	assert.Equal(t, 40, cfg.ChunkThreshold)
	assert.Equal(t, "127.0.0.1:8000", cfg.Addr, "untouched values keep defaults")
}

func TestLoad_MissingCredentialFails(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	_, err := Load("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
}

func TestLoadTOML_FileOverlay(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")

	path := filepath.Join(t.TempDir(), "config.toml")
	content := "addr = \"0.0.0.0:9000\"\nchunk_threshold = 32\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
	assert.Equal(t, 32, cfg.ChunkThreshold)
	assert.Equal(t, 50, cfg.PacingDelayMS, "file leaves other defaults alone")
}

func TestLoadTOML_EnvWinsOverFile(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("CHATRELAY_ADDR", "127.0.0.1:7777")

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("addr = \"0.0.0.0:9000\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7777", cfg.Addr)
}

func TestLoadTOML_MissingFileIgnored(t *testing.T) {
	cfg := Default()

	err := LoadTOML(cfg, filepath.Join(t.TempDir(), "absent.toml"))
	assert.NoError(t, err)
}

func TestLoadTOML_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("addr = ["), 0o644))

	err := LoadTOML(Default(), path)
	assert.Error(t, err)
}

func TestDerivedDurations(t *testing.T) {
	cfg := Default()

	assert.Equal(t, int64(50), cfg.PacingDelay().Milliseconds())
	assert.Equal(t, float64(60), cfg.RequestTimeout().Seconds())
}
