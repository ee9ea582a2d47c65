package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/backfolio/internal/config"
	"github.com/aristath/backfolio/internal/database"
	"github.com/aristath/backfolio/internal/modules/historical"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens every database and applies schemas.
// The runs database uses the ledger profile (synchronous FULL, append-only),
// the cache database uses the cache profile (synchronous OFF).
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	runsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "runs.db"),
		Profile: database.ProfileLedger,
		Name:    "runs",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open runs database: %w", err)
	}
	if err := runsDB.Migrate(); err != nil {
		runsDB.Close()
		return nil, fmt.Errorf("failed to migrate runs database: %w", err)
	}
	container.RunsDB = runsDB

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		runsDB.Close()
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := cacheDB.Migrate(); err != nil {
		runsDB.Close()
		cacheDB.Close()
		return nil, fmt.Errorf("failed to migrate cache database: %w", err)
	}
	container.CacheDB = cacheDB

	historyDB, err := historical.NewHistoryDB(cfg.HistoryDBPath, log)
	if err != nil {
		runsDB.Close()
		cacheDB.Close()
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	container.HistoryDB = historyDB

	log.Info().
		Str("runs", runsDB.Path()).
		Str("cache", cacheDB.Path()).
		Str("history", cfg.HistoryDBPath).
		Msg("Databases initialized")

	return container, nil
}
