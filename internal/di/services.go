package di

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aristath/backfolio/internal/config"
	"github.com/aristath/backfolio/internal/database"
	"github.com/aristath/backfolio/internal/events"
	"github.com/aristath/backfolio/internal/modules/backtest"
	"github.com/aristath/backfolio/internal/modules/results"
	"github.com/aristath/backfolio/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the data access layer
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container.RunsDB == nil || container.CacheDB == nil {
		return fmt.Errorf("databases must be initialized before repositories")
	}

	container.ResultsRepo = results.NewRepository(container.RunsDB.Conn(), log)
	container.ResultCache = results.NewCache(container.CacheDB.Conn(), log)

	return nil
}

// InitializeServices creates the business logic layer
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container.ResultsRepo == nil {
		return fmt.Errorf("repositories must be initialized before services")
	}

	container.EventManager = events.NewManager()
	container.BacktestService = backtest.NewService(
		container.HistoryDB,
		cfg.RiskFreeRate,
		container.EventManager,
		log,
	)

	backupDBs := map[string]*database.DB{
		"runs":  container.RunsDB,
		"cache": container.CacheDB,
	}
	container.BackupService = reliability.NewBackupService(
		backupDBs,
		filepath.Join(cfg.DataDir, "backups"),
		log,
	)

	if cfg.Backup.Enabled {
		s3Client, err := reliability.NewS3Client(context.Background(), cfg.Backup, log)
		if err != nil {
			return fmt.Errorf("failed to initialize s3 client: %w", err)
		}
		container.S3Backup = reliability.NewS3BackupService(
			s3Client,
			container.BackupService,
			cfg.DataDir,
			log,
		)
	}

	return nil
}
