// Package main is the entry point for the vinyl storefront server.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (config file + STOREFRONT_* env vars)
// 2. Create the logger
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/service, etc.).
//
// WHY cmd/server/?
// The cmd/ directory is a Go convention for executable entry points.
// This project has two: cmd/server (the HTTP API) and cmd/dbtool
// (database maintenance). Each gets its own directory with its own main.go.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/sakif/vinyl-storefront/internal/config"
	"github.com/sakif/vinyl-storefront/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default: ./config.yaml if present)")
	flag.Parse()

	// === 1. READ CONFIGURATION ===
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// log.format picks the handler: text for a terminal, json for log shippers.
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	// === 3. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newLogger(cfg config.Log) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
