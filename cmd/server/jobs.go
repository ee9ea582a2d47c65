package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/aristath/backfolio/internal/config"
	"github.com/aristath/backfolio/internal/database"
	"github.com/aristath/backfolio/internal/di"
	"github.com/aristath/backfolio/internal/reliability"
	"github.com/aristath/backfolio/internal/scheduler"
	"github.com/rs/zerolog"
)

// registerJobs wires the maintenance and backup jobs onto the scheduler.
// Schedules follow the usual quiet-hours pattern: backups at 1 AM,
// maintenance at 2 AM, weekly VACUUM on Sunday at 3 AM, coverage audit
// at 4 AM once fresh history has been ingested.
func registerJobs(sched *scheduler.Scheduler, cfg *config.Config, container *di.Container, log zerolog.Logger) error {
	databases := map[string]*database.DB{
		"runs":  container.RunsDB,
		"cache": container.CacheDB,
	}
	backupDir := filepath.Join(cfg.DataDir, "backups")

	backupJob := reliability.NewBackupJob(
		container.BackupService,
		container.S3Backup,
		30, // retention days for cloud backups
		log,
	)
	if err := sched.AddJob("0 1 * * *", backupJob); err != nil {
		return fmt.Errorf("failed to schedule backup job: %w", err)
	}

	dailyMaintenance := reliability.NewDailyMaintenanceJob(
		databases,
		container.ResultCache,
		time.Duration(cfg.CacheMaxAgeHours)*time.Hour,
		backupDir,
		log,
	)
	if err := sched.AddJob("0 2 * * *", dailyMaintenance); err != nil {
		return fmt.Errorf("failed to schedule daily maintenance: %w", err)
	}

	weeklyMaintenance := reliability.NewWeeklyMaintenanceJob(databases, log)
	if err := sched.AddJob("0 3 * * SUN", weeklyMaintenance); err != nil {
		return fmt.Errorf("failed to schedule weekly maintenance: %w", err)
	}

	coverageAudit := reliability.NewCoverageAuditJob(
		container.BacktestService,
		container.ResultsRepo,
		100, // recent runs re-checked per pass
		log,
	)
	if err := sched.AddJob("0 4 * * *", coverageAudit); err != nil {
		return fmt.Errorf("failed to schedule coverage audit: %w", err)
	}

	return nil
}
