/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the formation engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment), then parse flags
  2. Initialize the store (SQLite, or in-memory)
  3. Connect redis for the slot guard (optional)
  4. Create API handler and alert sweeper
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: $PORT or 8080)
  -db      SQLite database path (default: $DB_PATH or ./data/formation.db)
           Use ":memory:" for an in-memory SQLite database
  -store   "sqlite" or "memory" (default: sqlite)
  -redis   Redis address for the slot guard (default: $REDIS_ADDR)

ENVIRONMENT:
  PORT, DB_PATH, REDIS_ADDR, LOG_LEVEL, VIGILANCE_THRESHOLD,
  FISCAL_YEAR_START_MONTH, ALERT_SWEEP_INTERVAL (0 disables the sweeper).
  See config/config.go.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the alert sweeper
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close redis and the database
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/formation-engine/api"
	"github.com/warp/formation-engine/config"
	"github.com/warp/formation-engine/generic"
	"github.com/warp/formation-engine/schedule"
	"github.com/warp/formation-engine/store/memory"
	"github.com/warp/formation-engine/store/sqlite"
)

type store interface {
	api.Store
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags
	port := flag.String("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	storeKind := flag.String("store", "sqlite", "Store backend: sqlite or memory")
	redisAddr := flag.String("redis", cfg.RedisAddr, "Redis address for the slot guard (empty disables it)")
	flag.Parse()

	logger := config.NewLogger(cfg.LogLevel)

	// Initialize store
	var st store
	switch *storeKind {
	case "memory":
		st = memory.NewMemory()
	case "sqlite":
		if *dbPath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
				logger.Fatalf("Failed to create database directory: %v", err)
			}
		}
		s, err := sqlite.New(*dbPath)
		if err != nil {
			logger.Fatalf("Failed to initialize database: %v", err)
		}
		st = s
	default:
		logger.Fatalf("Unknown store %q", *storeKind)
	}
	defer st.Close()

	// Slot guard
	ctx := context.Background()
	var guard *schedule.Guard
	if client := config.ConnectRedis(ctx, logger, *redisAddr, 5); client != nil {
		defer client.Close()
		guard = schedule.NewGuard(client, schedule.DefaultLockTTL)
	} else {
		logger.Warn("redis unavailable, slot saves run unguarded")
	}

	// Initialize handler
	handler := api.NewHandler(st, logger)
	handler.Guard = guard
	handler.Fiscal = generic.FiscalCalendar{StartMonth: cfg.FiscalYearStartMonth}
	threshold := cfg.VigilanceThreshold
	handler.DefaultThreshold = &threshold

	// Alert sweeper
	sweeper := api.NewAlertSweeper(st, handler, logger)
	sweeper.CheckInterval = cfg.AlertSweepInterval
	sweeper.Enabled = cfg.AlertSweepInterval > 0
	handler.Sweeper = sweeper
	sweeper.Start()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.WithFields(logrus.Fields{
			"port":    *port,
			"store":   *storeKind,
			"guarded": guard.Enabled(),
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("server stopped")
}
