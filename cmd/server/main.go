// Package main is the entry point for the Backfolio portfolio backtesting
// service. It simulates monthly investing strategies against historical
// price data and serves the results over an HTTP API.
//
// The application follows clean architecture principles:
// - The engine is pure (no infrastructure dependencies)
// - Dependency injection via DI container
// - Repository pattern for data access
// - Service layer for business logic
// - HTTP handlers for API endpoints
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/backfolio/internal/config"
	"github.com/aristath/backfolio/internal/di"
	"github.com/aristath/backfolio/internal/scheduler"
	"github.com/aristath/backfolio/internal/server"
	"github.com/aristath/backfolio/pkg/logger"
)

// main orchestrates the system startup sequence:
// 1. Loads configuration from environment variables (.env supported)
// 2. Initializes structured logging
// 3. Wires all dependencies via the DI container (databases, repositories, services)
// 4. Registers scheduled maintenance and backup jobs
// 5. Starts the HTTP server
// 6. Waits for a shutdown signal and performs graceful shutdown
//
// The application uses a 2-database architecture plus the history store:
// - runs.db: Immutable record of completed backtests (ledger profile)
// - cache.db: Ephemeral result cache keyed by configuration hash
// - history.db: Historical prices and dividend events consumed by simulations
func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger with config level
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting Backfolio")

	// Wire all dependencies
	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// Register scheduled jobs: nightly maintenance, daily backups and a
	// weekly VACUUM of the cache database.
	sched := scheduler.New(log)
	if err := registerJobs(sched, cfg, container, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to register scheduled jobs")
	}
	sched.Start()
	defer sched.Stop()

	// Start HTTP server
	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	log.Info().Msg("Shutting down server...")

	// The HTTP server is given up to 10 seconds to finish in-flight requests
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
