// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chatrelay is a small HTTP backend that relays chat queries to the
// Gemini API, keeps per-session conversation history in memory, and
// streams replies back in paced word chunks.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeranaias/chatrelay/internal/config"
	"github.com/jeranaias/chatrelay/internal/gemini"
	"github.com/jeranaias/chatrelay/internal/logging"
	"github.com/jeranaias/chatrelay/internal/server"
	"github.com/jeranaias/chatrelay/internal/stats"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chatrelay: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger, err := logging.Init(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()

	client, err := gemini.NewClient(ctx, &gemini.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.Model,
		Timeout: cfg.RequestTimeout(),
	})
	if err != nil {
		return err
	}

	ledger, err := stats.OpenLedger(cfg.StatsDBPath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	srv := server.NewServer(cfg, client).
		WithLogger(logger).
		WithLedger(ledger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
