package backtest

import (
	"fmt"
	"time"

	"github.com/aristath/backfolio/internal/modules/historical"
	"github.com/rs/zerolog"
)

// maxObservationGap is how stale the last observation may be before a month
// counts as missing. Monthly data arrives at irregular day offsets, so the
// threshold is a little over one month.
const maxObservationGap = 35 * 24 * time.Hour

// Data quality thresholds, as fractions of the window's months
const (
	goodMissingRatio = 0.05
	fairMissingRatio = 0.15
)

// CoverageValidator determines the widest date range for which all requested
// tickers have usable data, flags gaps, and grades each asset's coverage.
// It only reads from the provider; validation has no side effects.
type CoverageValidator struct {
	provider historical.SeriesProvider
	log      zerolog.Logger
}

// NewCoverageValidator creates a new coverage validator
func NewCoverageValidator(provider historical.SeriesProvider, log zerolog.Logger) *CoverageValidator {
	return &CoverageValidator{
		provider: provider,
		log:      log.With().Str("service", "coverage").Logger(),
	}
}

// Validate computes the coverage report for the requested assets and window.
// The returned error covers provider failures only; data problems are
// reported structurally in the CoverageReport so the caller can adjust dates
// or assets and retry.
func (v *CoverageValidator) Validate(assets []Asset, startDate, endDate time.Time) (*CoverageReport, error) {
	report := &CoverageReport{IsValid: true}

	type tickerSeries struct {
		ticker string
		points []historical.PricePoint
	}

	var covered []tickerSeries
	effectiveStart := monthStart(startDate)
	effectiveEnd := endDate

	for _, asset := range assets {
		series, err := v.provider.GetSeries(asset.Ticker)
		if err != nil {
			return nil, fmt.Errorf("failed to load series for %s: %w", asset.Ticker, err)
		}

		if len(series) == 0 {
			report.IsValid = false
			report.AssetsAvailability = append(report.AssetsAvailability, AssetAvailability{
				Ticker:      asset.Ticker,
				DataQuality: QualityPoor,
				Warnings:    []string{"no historical data available"},
			})
			report.GlobalWarnings = append(report.GlobalWarnings,
				fmt.Sprintf("%s has no historical data; remove it or choose another ticker", asset.Ticker))
			continue
		}

		covered = append(covered, tickerSeries{ticker: asset.Ticker, points: series})

		availableFrom := series[0].Date
		availableTo := series[len(series)-1].Date
		effectiveStart = maxTime(effectiveStart, availableFrom)
		effectiveEnd = minTime(effectiveEnd, availableTo)

		report.AssetsAvailability = append(report.AssetsAvailability, AssetAvailability{
			Ticker:        asset.Ticker,
			AvailableFrom: availableFrom,
			AvailableTo:   availableTo,
		})
	}

	if len(covered) == 0 {
		report.IsValid = false
		report.GlobalWarnings = append(report.GlobalWarnings, "insufficient overlapping history: no asset has any data")
		return report, nil
	}

	if !effectiveStart.Before(effectiveEnd) {
		report.IsValid = false
		report.GlobalWarnings = append(report.GlobalWarnings,
			"insufficient overlapping history: the requested assets share no usable date range")
		return report, nil
	}

	report.AdjustedStartDate = effectiveStart
	report.AdjustedEndDate = effectiveEnd

	if effectiveStart.After(monthStart(startDate)) || effectiveEnd.Before(endDate) {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("available history limits the simulation window to %s .. %s",
				effectiveStart.Format("2006-01-02"), effectiveEnd.Format("2006-01-02")))
	}

	months := monthsIn(effectiveStart, effectiveEnd)

	// Grade each covered asset inside the effective window
	for _, ts := range covered {
		avail := v.findAvailability(report, ts.ticker)
		avail.TotalMonths = len(months)
		avail.MissingMonths = countMissingMonths(ts.points, months)
		avail.DataQuality = gradeQuality(avail.MissingMonths, avail.TotalMonths)

		switch avail.DataQuality {
		case QualityGood:
			avail.Warnings = append(avail.Warnings,
				fmt.Sprintf("minor gaps: %d of %d months have no observation", avail.MissingMonths, avail.TotalMonths))
		case QualityFair:
			avail.Warnings = append(avail.Warnings,
				fmt.Sprintf("notable gaps: %d of %d months have no observation; results use last-known prices", avail.MissingMonths, avail.TotalMonths))
		case QualityPoor:
			avail.Warnings = append(avail.Warnings,
				fmt.Sprintf("sparse history: %d of %d months have no observation", avail.MissingMonths, avail.TotalMonths))
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("consider removing %s or narrowing the window; its history is sparse", ts.ticker))
		}
	}

	v.log.Debug().
		Int("assets", len(assets)).
		Bool("valid", report.IsValid).
		Time("start", report.AdjustedStartDate).
		Time("end", report.AdjustedEndDate).
		Msg("Computed coverage report")

	return report, nil
}

// findAvailability returns the report entry for a ticker
func (v *CoverageValidator) findAvailability(report *CoverageReport, ticker string) *AssetAvailability {
	for i := range report.AssetsAvailability {
		if report.AssetsAvailability[i].Ticker == ticker {
			return &report.AssetsAvailability[i]
		}
	}
	// Unreachable: entries are created before grading
	report.AssetsAvailability = append(report.AssetsAvailability, AssetAvailability{Ticker: ticker})
	return &report.AssetsAvailability[len(report.AssetsAvailability)-1]
}

// countMissingMonths counts window months with no observation reachable by
// last-price carry-forward within the gap tolerance.
func countMissingMonths(points []historical.PricePoint, months []time.Time) int {
	missing := 0
	idx := 0
	lastObs := time.Time{}

	for _, month := range months {
		ref := monthEnd(month)
		for idx < len(points) && !points[idx].Date.After(ref) {
			lastObs = points[idx].Date
			idx++
		}
		if lastObs.IsZero() || ref.Sub(lastObs) > maxObservationGap {
			missing++
		}
	}
	return missing
}

// gradeQuality maps a missing-month ratio to a quality grade
func gradeQuality(missing, total int) DataQuality {
	if total == 0 {
		return QualityPoor
	}
	if missing == 0 {
		return QualityExcellent
	}
	ratio := float64(missing) / float64(total)
	switch {
	case ratio <= goodMissingRatio:
		return QualityGood
	case ratio <= fairMissingRatio:
		return QualityFair
	default:
		return QualityPoor
	}
}
