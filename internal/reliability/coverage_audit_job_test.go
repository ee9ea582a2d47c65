package reliability

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/backfolio/internal/database"
	"github.com/aristath/backfolio/internal/modules/backtest"
	"github.com/aristath/backfolio/internal/modules/historical"
	"github.com/aristath/backfolio/internal/modules/results"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type auditFixture struct {
	job      *CoverageAuditJob
	service  *backtest.Service
	repo     *results.Repository
	provider *historical.MemoryProvider
}

func newAuditFixture(t *testing.T) *auditFixture {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "runs.db"),
		Profile: database.ProfileLedger,
		Name:    "runs",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	provider := historical.NewMemoryProvider()
	service := backtest.NewService(provider, 0.0, nil, zerolog.Nop())
	repo := results.NewRepository(db.Conn(), zerolog.Nop())

	return &auditFixture{
		job:      NewCoverageAuditJob(service, repo, 10, zerolog.Nop()),
		service:  service,
		repo:     repo,
		provider: provider,
	}
}

func (f *auditFixture) seedFlatSeries(t *testing.T, ticker string, months int) {
	t.Helper()

	points := make([]historical.PricePoint, months)
	anchor := time.Date(2020, time.January, 15, 0, 0, 0, 0, time.UTC)
	for i := range points {
		points[i] = historical.PricePoint{
			Date:     anchor.AddDate(0, i, 0),
			AdjClose: decimal.NewFromInt(100),
		}
	}
	f.provider.SetSeries(ticker, points)
}

func (f *auditFixture) persistRun(t *testing.T) *backtest.Run {
	t.Helper()

	run, _, err := f.service.RunAutoAdjusted(backtest.Config{
		Assets: []backtest.Asset{
			{Ticker: "VWCE", TargetAllocation: decimal.NewFromInt(1)},
		},
		StartDate:          time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:            time.Date(2020, time.December, 31, 0, 0, 0, 0, time.UTC),
		InitialCapital:     decimal.NewFromInt(12000),
		RebalanceFrequency: backtest.RebalanceMonthly,
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, run)
	require.NoError(t, f.repo.SaveRun(run))
	return run
}

func TestCoverageAuditJob_EmptyRepository(t *testing.T) {
	f := newAuditFixture(t)

	require.NoError(t, f.job.Run())
}

func TestCoverageAuditJob_UnchangedCoverage(t *testing.T) {
	f := newAuditFixture(t)
	f.seedFlatSeries(t, "VWCE", 12)
	run := f.persistRun(t)

	// History unchanged, so the fresh report must match the stored one.
	require.NoError(t, f.job.Run())

	fresh, err := f.service.Validate(run.Config)
	require.NoError(t, err)
	assert.False(t, f.job.reportChanges(run, fresh))
}

func TestCoverageAuditJob_DetectsQualityChange(t *testing.T) {
	f := newAuditFixture(t)
	f.seedFlatSeries(t, "VWCE", 12)
	run := f.persistRun(t)

	// Re-ingest the series with a hole in the middle. The re-graded
	// quality for VWCE drops below the excellent recorded at run time.
	points := make([]historical.PricePoint, 0, 10)
	anchor := time.Date(2020, time.January, 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		if i == 5 || i == 6 {
			continue
		}
		points = append(points, historical.PricePoint{
			Date:     anchor.AddDate(0, i, 0),
			AdjClose: decimal.NewFromInt(100),
		})
	}
	f.provider.SetSeries("VWCE", points)

	fresh, err := f.service.Validate(run.Config)
	require.NoError(t, err)
	assert.True(t, f.job.reportChanges(run, fresh))

	require.NoError(t, f.job.Run())
}

func TestCoverageAuditJob_Name(t *testing.T) {
	f := newAuditFixture(t)
	assert.Equal(t, "coverage_audit", f.job.Name())
}
