package results

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/backfolio/internal/database"
	"github.com/aristath/backfolio/internal/modules/backtest"
	"github.com/aristath/backfolio/internal/modules/historical"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T, name string, profile database.DatabaseProfile) *sql.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db.Conn()
}

func testRunsDB(t *testing.T) *sql.DB {
	return testDB(t, "runs", database.ProfileLedger)
}

func testCacheDB(t *testing.T) *sql.DB {
	return testDB(t, "cache", database.ProfileCache)
}

// sampleRun produces a real run through the engine so the persisted shape
// matches production output
func sampleRun(t *testing.T) *backtest.Run {
	t.Helper()

	start := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, time.December, 31, 0, 0, 0, 0, time.UTC)

	provider := historical.NewMemoryProvider()
	points := make([]historical.PricePoint, 12)
	anchor := time.Date(2020, time.January, 15, 0, 0, 0, 0, time.UTC)
	for i := range points {
		points[i] = historical.PricePoint{
			Date:     anchor.AddDate(0, i, 0),
			AdjClose: decimal.NewFromInt(100),
		}
	}
	provider.SetSeries("VWCE", points)

	svc := backtest.NewService(provider, 0.0, nil, zerolog.Nop())
	run, _, err := svc.RunAutoAdjusted(backtest.Config{
		Assets: []backtest.Asset{
			{Ticker: "VWCE", TargetAllocation: decimal.NewFromInt(1), AverageDividendYield: decimal.NewFromFloat(0.03)},
		},
		StartDate:           start,
		EndDate:             end,
		InitialCapital:      decimal.NewFromInt(12000),
		MonthlyContribution: decimal.NewFromInt(500),
		RebalanceFrequency:  backtest.RebalanceMonthly,
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, run)
	return run
}
