/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the owner statement engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load optional YAML config
  2. Set up structured logging
  3. Initialize SQLite store
  4. Wire orchestrator, scheduler, and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config file path (optional; flags override it)
  -port    HTTP server port (default: from config, 8080)
  -db      SQLite database path (default: from config)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the tag scheduler (waits for an in-flight run)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/statements.db"

  # Run with config file
  ./server -config=config.yaml

  # Run on different port
  ./server -port=3000

ENVIRONMENT:
  LOG_LEVEL  debug|info|warn|error (default: info)

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Tag-driven generation
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dnovakovic099/owner-statements-app-complete-sub009/api"
	"github.com/dnovakovic099/owner-statements-app-complete-sub009/config"
	"github.com/dnovakovic099/owner-statements-app-complete-sub009/jobs"
	"github.com/dnovakovic099/owner-statements-app-complete-sub009/logging"
	"github.com/dnovakovic099/owner-statements-app-complete-sub009/statement"
	"github.com/dnovakovic099/owner-statements-app-complete-sub009/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML config file path")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	logging.Setup()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if cfg.DefaultPMFeePercent > 0 {
		statement.DefaultPMFeePercent = statement.Money(cfg.DefaultPMFeePercent)
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("failed to initialize database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	fees := statement.FeeConfig{
		TechFee:      cfg.TechFeeAmount(),
		InsuranceFee: cfg.InsuranceFeeAmount(),
	}

	// Wire dependencies
	orchestrator := jobs.NewOrchestrator(store, fees)
	scheduler := api.NewTagScheduler(store, fees, cfg.Scheduler)
	handler := api.NewHandler(store, fees, orchestrator, scheduler)
	router := api.NewRouter(handler)

	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "addr", fmt.Sprintf("http://localhost:%d", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
