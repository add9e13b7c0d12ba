// Package main provides the HTTP and WebSocket server for legalchat.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/legalchat/internal/app"
	"github.com/raphaelgruber/legalchat/internal/config"
	"github.com/raphaelgruber/legalchat/internal/server"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup runs before exit.
func run() int {
	// Parse flags
	addr := flag.String("addr", "", "listen address (overrides LEGALCHAT_ADDR)")
	flag.Parse()

	// Load configuration
	cfg := config.Load()
	if *addr != "" {
		cfg.ServerAddr = *addr
	}

	// Initialize logging
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() {
		if err := cleanup(); err != nil {
			slog.Error("failed to close log file", "error", err)
		}
	}()
	slog.SetDefault(logger)

	logger.Info("starting legalchat-server", "addr", cfg.ServerAddr, "store", cfg.StoreBackend, "dedup", cfg.DedupBackend)

	// Wire the engine and its collaborators
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		cancel()
		logger.Error("failed to create engine", "error", err)
		return 1
	}
	a.Dedup, err = app.OpenDedup(ctx, cfg)
	cancel()
	if err != nil {
		logger.Error("failed to open de-duplication tracker", "error", err)
		a.Close()
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close app", "error", err)
		}
	}()

	if cfg.AppSecret == "" {
		logger.Warn("LEGALCHAT_APP_SECRET not set, inbound signatures are not checked")
	}

	srv := server.New(a.Engine, server.Options{
		VerifyToken: cfg.VerifyToken,
		AppSecret:   cfg.AppSecret,
		Dedup:       a.Dedup,
		Metrics:     a.Metrics,
		Logger:      logger,
	})

	// Run until interrupted
	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(runCtx, cfg.ServerAddr); err != nil {
		logger.Error("server error", "error", err)
		return 1
	}
	logger.Info("server stopped")
	return 0
}
