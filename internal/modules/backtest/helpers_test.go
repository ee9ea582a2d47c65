package backtest

import (
	"time"

	"github.com/aristath/backfolio/internal/modules/historical"
	"github.com/shopspring/decimal"
)

// dec is a test shorthand for decimal literals
func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// date builds a midnight-UTC date
func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// seriesWithPrices builds one observation on the 15th of each month,
// starting at start's month, using prices[i] for month i
func seriesWithPrices(start time.Time, prices []float64) []historical.PricePoint {
	points := make([]historical.PricePoint, 0, len(prices))
	anchor := time.Date(start.Year(), start.Month(), 15, 0, 0, 0, 0, time.UTC)
	for i, p := range prices {
		points = append(points, historical.PricePoint{
			Date:     anchor.AddDate(0, i, 0),
			AdjClose: dec(p),
		})
	}
	return points
}

// flatSeries builds a constant-price monthly series
func flatSeries(start time.Time, months int, price float64) []historical.PricePoint {
	prices := make([]float64, months)
	for i := range prices {
		prices[i] = price
	}
	return seriesWithPrices(start, prices)
}

// singleAssetConfig is the baseline request used across the engine tests:
// one asset at 100% allocation, no dividends unless the test overrides it
func singleAssetConfig(ticker string, start, end time.Time) Config {
	return Config{
		Assets: []Asset{
			{Ticker: ticker, TargetAllocation: dec(1.0)},
		},
		StartDate:           start,
		EndDate:             end,
		InitialCapital:      dec(12000),
		MonthlyContribution: decimal.Zero,
		RebalanceFrequency:  RebalanceMonthly,
	}
}
