package backtest

import (
	"fmt"
	"time"

	"github.com/aristath/backfolio/internal/events"
	"github.com/aristath/backfolio/internal/modules/historical"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service wires the three pipeline stages together:
// validate → simulate → summarize.
//
// The original confirmation workflow is modeled as two separately callable
// steps: the caller first receives the coverage report from Validate and,
// once accepted, passes it back to Run. RunAutoAdjusted performs both in one
// call using the auto-adjusted window, for callers that explicitly waive the
// confirmation step.
type Service struct {
	provider  historical.SeriesProvider
	simulator *MonthlySimulator
	metrics   *MetricsCalculator
	events    *events.Manager // Optional, may be nil
	log       zerolog.Logger
}

// NewService creates a backtest service. riskFreeRate is the annualized
// decimal rate used for Sharpe ratios. eventManager may be nil when no one
// is listening for run progress.
func NewService(provider historical.SeriesProvider, riskFreeRate float64, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		provider:  provider,
		simulator: NewMonthlySimulator(log),
		metrics:   NewMetricsCalculator(riskFreeRate, log),
		events:    eventManager,
		log:       log.With().Str("service", "backtest").Logger(),
	}
}

// Validate checks the configuration and computes the coverage report.
// A *ConfigError means the request itself is malformed and nothing was
// looked up. A report with IsValid=false means the data cannot support the
// request; the caller must not proceed to Run.
func (s *Service) Validate(cfg Config) (*CoverageReport, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	snapshot, err := historical.Prefetch(s.provider, cfg.Tickers(), s.log)
	if err != nil {
		return nil, fmt.Errorf("failed to prefetch historical data: %w", err)
	}

	validator := NewCoverageValidator(snapshot, s.log)
	return validator.Validate(cfg.Assets, cfg.StartDate, cfg.EndDate)
}

// Run executes the simulation over the window of an accepted coverage
// report and summarizes the outcome. The report must come from Validate
// (or RunAutoAdjusted) with IsValid=true.
func (s *Service) Run(cfg Config, report *CoverageReport, progress ProgressFunc) (*Run, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if report == nil || !report.IsValid {
		return nil, fmt.Errorf("cannot run a backtest without an accepted coverage report")
	}

	// The ID is minted before simulation so progress events can carry it.
	runID := uuid.New().String()
	reporter := events.NewRunReporter(s.events, runID)
	reporter.Started(monthsBetween(report.AdjustedStartDate, report.AdjustedEndDate))

	// Snapshot the data once so both simulation and summarization see the
	// same series even if the underlying store changes mid-run. Fetches are
	// concurrent across tickers; everything after this point is sequential.
	snapshot, err := historical.Prefetch(s.provider, cfg.Tickers(), s.log)
	if err != nil {
		reporter.Failed(err)
		return nil, fmt.Errorf("failed to prefetch historical data: %w", err)
	}

	progressFn := func(current, total int, message string) {
		reporter.Report(current, total, message)
		if progress != nil {
			progress(current, total, message)
		}
	}

	ledger, evolution, err := s.simulator.Simulate(cfg, snapshot, report.AdjustedStartDate, report.AdjustedEndDate, progressFn)
	if err != nil {
		reporter.Failed(err)
		return nil, fmt.Errorf("simulation failed: %w", err)
	}

	result, err := s.metrics.Summarize(ledger, evolution, cfg)
	if err != nil {
		reporter.Failed(err)
		return nil, fmt.Errorf("failed to summarize simulation: %w", err)
	}

	run := &Run{
		ID:        runID,
		CreatedAt: time.Now().UTC(),
		Config:    cfg,
		Report:    report,
		Result:    result,
		Ledger:    ledger,
	}
	reporter.Completed(len(evolution), result.FinalValue.String())

	s.log.Info().
		Str("run_id", run.ID).
		Int("months", len(evolution)).
		Str("final_value", result.FinalValue.String()).
		Msg("Backtest run complete")

	return run, nil
}

// RunAutoAdjusted validates and simulates in one call, accepting the
// auto-adjusted window without a confirmation round-trip. The coverage
// report is always returned; when it is not valid, no run is produced and
// the report carries the explanation.
func (s *Service) RunAutoAdjusted(cfg Config, progress ProgressFunc) (*Run, *CoverageReport, error) {
	report, err := s.Validate(cfg)
	if err != nil {
		return nil, nil, err
	}
	if !report.IsValid {
		return nil, report, nil
	}

	run, err := s.Run(cfg, report, progress)
	if err != nil {
		return nil, report, err
	}
	return run, report, nil
}
