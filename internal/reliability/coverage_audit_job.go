package reliability

import (
	"fmt"

	"github.com/aristath/backfolio/internal/modules/backtest"
	"github.com/aristath/backfolio/internal/modules/results"
	"github.com/rs/zerolog"
)

// CoverageAuditJob re-validates the configurations of recent runs against
// the current history store. As new price data is ingested, coverage that
// graded poor at run time may improve; the audit surfaces those changes so
// stale results can be re-run with better data.
type CoverageAuditJob struct {
	service *backtest.Service
	repo    *results.Repository
	limit   int
	log     zerolog.Logger
}

// NewCoverageAuditJob creates a new coverage audit job. limit caps how many
// recent runs are re-checked per pass.
func NewCoverageAuditJob(
	service *backtest.Service,
	repo *results.Repository,
	limit int,
	log zerolog.Logger,
) *CoverageAuditJob {
	if limit <= 0 {
		limit = 100
	}
	return &CoverageAuditJob{
		service: service,
		repo:    repo,
		limit:   limit,
		log:     log.With().Str("job", "coverage_audit").Logger(),
	}
}

// Name returns the job name
func (j *CoverageAuditJob) Name() string {
	return "coverage_audit"
}

// Run executes the coverage audit job
func (j *CoverageAuditJob) Run() error {
	runs, err := j.repo.ListRuns(j.limit)
	if err != nil {
		return fmt.Errorf("failed to list runs for audit: %w", err)
	}

	var audited, changed int
	for i := range runs {
		run := &runs[i]

		report, err := j.service.Validate(run.Config)
		if err != nil {
			// A config that validated once should keep validating; log and move on.
			j.log.Warn().
				Err(err).
				Str("run_id", run.ID).
				Msg("Stored config failed re-validation")
			continue
		}
		audited++

		if j.reportChanges(run, report) {
			changed++
		}
	}

	j.log.Info().
		Int("audited", audited).
		Int("changed", changed).
		Msg("Coverage audit completed")

	return nil
}

// reportChanges compares the fresh coverage report against the one stored
// with the run and logs every per-asset quality change. Returns true when
// anything differs.
func (j *CoverageAuditJob) reportChanges(run *backtest.Run, fresh *backtest.CoverageReport) bool {
	if run.Report == nil {
		return false
	}

	stored := make(map[string]backtest.DataQuality, len(run.Report.AssetsAvailability))
	for _, a := range run.Report.AssetsAvailability {
		stored[a.Ticker] = a.DataQuality
	}

	changed := false
	for _, a := range fresh.AssetsAvailability {
		before, ok := stored[a.Ticker]
		if !ok || before == a.DataQuality {
			continue
		}
		changed = true
		j.log.Info().
			Str("run_id", run.ID).
			Str("ticker", a.Ticker).
			Str("was", string(before)).
			Str("now", string(a.DataQuality)).
			Msg("Data quality changed since run")
	}

	if run.Report.IsValid != fresh.IsValid {
		changed = true
		j.log.Warn().
			Str("run_id", run.ID).
			Bool("was_valid", run.Report.IsValid).
			Bool("now_valid", fresh.IsValid).
			Msg("Coverage validity changed since run")
	}

	return changed
}
