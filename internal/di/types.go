/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application
 * dependencies. The Container is the single source of truth for all service
 * instances and is passed to the server for access to services.
 */
package di

import (
	"github.com/aristath/backfolio/internal/database"
	"github.com/aristath/backfolio/internal/events"
	"github.com/aristath/backfolio/internal/modules/backtest"
	"github.com/aristath/backfolio/internal/modules/historical"
	"github.com/aristath/backfolio/internal/modules/results"
	"github.com/aristath/backfolio/internal/reliability"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Databases: runs (ledger profile, append-only) and cache (cache profile)
 * - HistoryDB: the historical price/dividend store consumed by simulations
 * - Repositories: run persistence and the result cache
 * - Services: the backtest engine service and backup services
 * - EventManager: in-process bus streaming run progress to websockets
 */
type Container struct {
	// Databases
	RunsDB  *database.DB
	CacheDB *database.DB

	// Historical data
	HistoryDB *historical.HistoryDB

	// Repositories
	ResultsRepo *results.Repository
	ResultCache *results.Cache

	// Services
	BacktestService *backtest.Service
	BackupService   *reliability.BackupService
	S3Backup        *reliability.S3BackupService // nil when backups are disabled

	// Events
	EventManager *events.Manager
}

// Close releases every resource the container owns
func (c *Container) Close() {
	if c.HistoryDB != nil {
		c.HistoryDB.Close()
	}
	if c.RunsDB != nil {
		c.RunsDB.Close()
	}
	if c.CacheDB != nil {
		c.CacheDB.Close()
	}
}
