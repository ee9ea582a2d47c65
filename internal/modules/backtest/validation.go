package backtest

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ConfigError reports every configuration problem found, so the caller can
// surface all of them at once instead of fixing one per round-trip.
// Configuration problems are detected before any data lookup; nothing
// executes when validation fails.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid backtest configuration: %s", strings.Join(e.Problems, "; "))
}

// ValidateConfig checks a simulation request for structural problems:
// allocations that do not sum to ~1, duplicate tickers, a non-positive date
// range, negative capital or contribution. Returns a *ConfigError listing
// every problem, or nil when the config is usable.
func ValidateConfig(cfg Config) error {
	var problems []string

	if len(cfg.Assets) == 0 {
		problems = append(problems, "portfolio has no assets")
	}

	seen := make(map[string]bool, len(cfg.Assets))
	allocationSum := decimal.Zero
	for i, asset := range cfg.Assets {
		if asset.Ticker == "" {
			problems = append(problems, fmt.Sprintf("asset %d has an empty ticker", i))
		} else if seen[asset.Ticker] {
			problems = append(problems, fmt.Sprintf("duplicate ticker %s", asset.Ticker))
		}
		seen[asset.Ticker] = true

		if asset.TargetAllocation.LessThanOrEqual(decimal.Zero) || asset.TargetAllocation.GreaterThan(decimal.NewFromInt(1)) {
			problems = append(problems, fmt.Sprintf("allocation for %s must be in (0, 1], got %s", asset.Ticker, asset.TargetAllocation))
		}
		if asset.AverageDividendYield.IsNegative() {
			problems = append(problems, fmt.Sprintf("dividend yield for %s must not be negative, got %s", asset.Ticker, asset.AverageDividendYield))
		}

		allocationSum = allocationSum.Add(asset.TargetAllocation)
	}

	if len(cfg.Assets) > 0 {
		drift := allocationSum.Sub(decimal.NewFromInt(1)).Abs()
		if drift.GreaterThan(AllocationTolerance) {
			problems = append(problems, fmt.Sprintf("allocations sum to %s, expected 1", allocationSum))
		}
	}

	if cfg.StartDate.IsZero() || cfg.EndDate.IsZero() {
		problems = append(problems, "start and end dates are required")
	} else if !cfg.EndDate.After(cfg.StartDate) {
		problems = append(problems, "end date must be after start date")
	}

	if cfg.InitialCapital.IsNegative() {
		problems = append(problems, "initial capital must not be negative")
	}
	if cfg.MonthlyContribution.IsNegative() {
		problems = append(problems, "monthly contribution must not be negative")
	}
	if cfg.InitialCapital.IsZero() && cfg.MonthlyContribution.IsZero() {
		problems = append(problems, "initial capital and monthly contribution are both zero, nothing to invest")
	}

	if cfg.RebalanceFrequency.monthInterval() == 0 {
		problems = append(problems, fmt.Sprintf("unknown rebalance frequency %q", cfg.RebalanceFrequency))
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}
