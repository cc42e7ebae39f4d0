package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stagepipe/omcbridge/internal/config"
	"github.com/stagepipe/omcbridge/internal/core"
	"github.com/stagepipe/omcbridge/internal/logging"
	"github.com/stagepipe/omcbridge/internal/validator"
	"github.com/stagepipe/omcbridge/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"convert_max_concurrent", cfg.Convert.MaxConcurrent,
		"raw_copy_policy", cfg.Convert.RawCopyPolicy,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	// Conversion history is optional: without DATABASE_URL the converter
	// runs with in-memory runs only and no audit log.
	var store *core.Store
	if cfg.Database.URL != "" {
		poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
		if err != nil {
			slog.Error("failed to parse database URL", "error", err)
			os.Exit(1)
		}

		// Apply pool configuration from config
		poolConfig.MaxConns = int32(cfg.Database.MaxConns)
		poolConfig.MinConns = int32(cfg.Database.MinConns)
		poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
		poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		// Verify connection
		if err := pool.Ping(ctx); err != nil {
			slog.Error("failed to ping database", "error", err)
			os.Exit(1)
		}

		// Log which database we connected to
		if u, err := url.Parse(cfg.Database.URL); err == nil {
			dbName := strings.TrimPrefix(u.Path, "/")
			slog.Info("connected to database", "name", dbName)
		} else {
			slog.Info("connected to database")
		}

		store = core.NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("no database configured, conversion history disabled")
	}

	// The external schema checker is optional as well
	var checker *validator.Client
	if cfg.Validator.URL != "" {
		checker = validator.NewClient(cfg.Validator.URL, cfg.Validator.APIKey, cfg.Validator.Timeout)
		slog.Info("schema checker configured", "url", cfg.Validator.URL)
	} else {
		slog.Info("no schema checker configured, verification disabled")
	}

	// Create service with config
	service, err := core.NewService(store, checker, core.ServiceConfig{
		MaxConcurrent: cfg.Convert.MaxConcurrent,
		SlotWait:      cfg.Convert.MaxWaitTime,
		Timeout:       cfg.Convert.Timeout,
		ExportDir:     cfg.Convert.ExportDir,
		DefaultPolicy: core.RawCopyPolicy(cfg.Convert.RawCopyPolicy),
	})
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	// Create server with config
	server := web.NewServer(service, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	// Start retention scheduler with config values
	go service.StartRetentionScheduler(jobCtx, core.RetentionConfig{
		RunRetentionDays:   cfg.Retention.RunRetentionDays,
		AuditRetentionDays: cfg.Retention.AuditRetentionDays,
		CheckInterval:      cfg.Retention.CheckInterval,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active conversions to complete (with timeout)
		status := service.Status()
		if status.ActiveRuns > 0 {
			slog.Info("waiting for conversions to complete", "active", status.ActiveRuns)
			if err := service.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("conversions did not complete in time", "error", err)
			} else {
				slog.Info("all conversions completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	// Start server (uses addr from config internally)
	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
