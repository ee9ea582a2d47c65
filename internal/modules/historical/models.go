// Package historical provides access to historical price and dividend series.
//
// The backtesting engine treats historical data as a pure lookup capability:
// it consumes ordered (date, adjusted close) series and optional dividend
// payment events, and never fetches or persists anything itself. This package
// defines that contract plus two implementations: an in-memory provider used
// by tests and synthetic scenarios, and a SQLite-backed provider over the
// per-symbol history databases maintained by the ingestion pipeline.
package historical

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is a single observation in a price series.
// AdjClose is the dividend/split adjusted closing price.
type PricePoint struct {
	Date     time.Time       `json:"date"`
	AdjClose decimal.Decimal `json:"adj_close"`
}

// DividendEvent is an actual per-share cash dividend payment.
type DividendEvent struct {
	Date   time.Time       `json:"date"`
	Amount decimal.Decimal `json:"amount"` // per share, in the series currency
}

// SeriesProvider supplies historical data for a ticker.
//
// GetSeries returns the full available series in ascending date order.
// An empty (nil) series means the ticker has no data at all; callers decide
// how to report that.
//
// GetDividendEvents returns actual dividend payments in ascending date order,
// or nil when no event history exists; nil signals "use the assumed yield
// model instead of actual events".
type SeriesProvider interface {
	GetSeries(ticker string) ([]PricePoint, error)
	GetDividendEvents(ticker string) ([]DividendEvent, error)
}
