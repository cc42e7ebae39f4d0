package core

// scheduler.go provides background retention for persisted history.
//
// The scheduler periodically deletes conversion runs and audit entries that
// have aged past their retention windows. It is long-running and
// context-aware for graceful shutdown, and logs failures without taking the
// application down.

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Retention defaults, applied when the config carries zero values.
const (
	DefaultRunRetentionDays   = 30
	DefaultAuditRetentionDays = 90
	DefaultRetentionInterval  = 24 * time.Hour
)

// RetentionConfig holds configuration for the retention scheduler.
type RetentionConfig struct {
	RunRetentionDays   int           // days to keep conversion runs
	AuditRetentionDays int           // days to keep audit entries
	CheckInterval      time.Duration // how often to run
}

// StartRetentionScheduler starts a background loop that purges aged history.
// It runs once immediately, then every CheckInterval, and stops when the
// context is cancelled. Without a database it returns immediately.
func (s *Service) StartRetentionScheduler(ctx context.Context, cfg RetentionConfig) {
	if s.store == nil {
		slog.Info("retention scheduler disabled: no database configured")
		return
	}

	if cfg.RunRetentionDays <= 0 {
		cfg.RunRetentionDays = DefaultRunRetentionDays
	}
	if cfg.AuditRetentionDays <= 0 {
		cfg.AuditRetentionDays = DefaultAuditRetentionDays
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultRetentionInterval
	}

	slog.Info("retention scheduler started",
		"run_retention_days", cfg.RunRetentionDays,
		"audit_retention_days", cfg.AuditRetentionDays,
		"check_interval", cfg.CheckInterval,
	)

	s.runRetentionJob(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention scheduler stopped")
			return
		case <-ticker.C:
			s.runRetentionJob(ctx, cfg)
		}
	}
}

// runRetentionJob performs one purge cycle over both tables.
func (s *Service) runRetentionJob(ctx context.Context, cfg RetentionConfig) {
	start := time.Now()

	runCutoff := time.Now().AddDate(0, 0, -cfg.RunRetentionDays)
	purgedRuns, err := s.store.PurgeRunsBefore(ctx, runCutoff)
	if err != nil {
		slog.Error("run purge failed", "error", err)
	} else if purgedRuns > 0 {
		slog.Info("purged conversion runs",
			"runs_purged", purgedRuns,
			"cutoff", runCutoff.Format(time.RFC3339),
		)
		s.LogAudit(ctx, AuditLogParams{
			Action:       ActionHistoryPurge,
			Detail:       fmt.Sprintf("purged %d runs older than %d days", purgedRuns, cfg.RunRetentionDays),
			RowsAffected: int(purgedRuns),
		})
	}

	auditCutoff := time.Now().AddDate(0, 0, -cfg.AuditRetentionDays)
	purgedAudit, err := s.store.PurgeAuditBefore(ctx, auditCutoff)
	if err != nil {
		slog.Error("audit purge failed", "error", err)
	} else if purgedAudit > 0 {
		slog.Info("purged audit entries",
			"entries_purged", purgedAudit,
			"cutoff", auditCutoff.Format(time.RFC3339),
		)
	}

	slog.Debug("retention job completed", "duration_ms", time.Since(start).Milliseconds())
}
