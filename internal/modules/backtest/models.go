// Package backtest implements the portfolio backtesting simulation engine.
//
// Given a target portfolio (tickers with allocation weights and assumed
// dividend yields), a date range, an initial capital amount, a recurring
// contribution and a rebalance frequency, the engine replays history month by
// month and produces a deterministic performance report: returns, risk
// metrics, per-asset attribution and a full transaction ledger.
//
// The pipeline is validate → simulate → summarize. Each stage is a pure
// function of its inputs; no stage retains state across invocations, and the
// engine neither fetches external data (it consumes an injected
// historical.SeriesProvider) nor persists anything itself.
//
// All money amounts and share counts use decimal arithmetic
// (shopspring/decimal) so that hundreds of monthly transactions accumulate
// without binary floating point drift. Share counts carry six decimal places
// to model reinvestment of small dividend amounts. float64 appears only in
// the statistics layer (returns, volatility, drawdown).
package backtest

import (
	"time"

	"github.com/shopspring/decimal"
)

// RebalanceFrequency controls how often pooled cash is steered toward
// underweighted assets instead of being split by target allocation.
type RebalanceFrequency string

const (
	RebalanceMonthly   RebalanceFrequency = "monthly"
	RebalanceQuarterly RebalanceFrequency = "quarterly"
	RebalanceYearly    RebalanceFrequency = "yearly"
)

// monthInterval returns the number of months between rebalance boundaries,
// or 0 for an unknown frequency.
func (f RebalanceFrequency) monthInterval() int {
	switch f {
	case RebalanceMonthly:
		return 1
	case RebalanceQuarterly:
		return 3
	case RebalanceYearly:
		return 12
	}
	return 0
}

// Asset is one line item of the target portfolio
type Asset struct {
	Ticker string `json:"ticker"`
	// TargetAllocation is the fraction of the portfolio this asset should
	// represent, in (0, 1]. All assets' allocations must sum to 1 within
	// AllocationTolerance.
	TargetAllocation decimal.Decimal `json:"target_allocation"`
	// AverageDividendYield is the assumed decimal annual yield. Zero disables
	// dividend simulation for this asset. Ignored when the provider has
	// actual dividend events for the ticker.
	AverageDividendYield decimal.Decimal `json:"average_dividend_yield"`
}

// Config is a simulation request. It is validated once and then consumed
// read-only by the simulator.
type Config struct {
	Assets              []Asset            `json:"assets"`
	StartDate           time.Time          `json:"start_date"`
	EndDate             time.Time          `json:"end_date"`
	InitialCapital      decimal.Decimal    `json:"initial_capital"`
	MonthlyContribution decimal.Decimal    `json:"monthly_contribution"`
	RebalanceFrequency  RebalanceFrequency `json:"rebalance_frequency"`
}

// Tickers returns the config's tickers in declaration order
func (c Config) Tickers() []string {
	tickers := make([]string, 0, len(c.Assets))
	for _, a := range c.Assets {
		tickers = append(tickers, a.Ticker)
	}
	return tickers
}

// DataQuality grades an asset's historical coverage inside the simulation window
type DataQuality string

const (
	QualityExcellent DataQuality = "excellent" // no missing months
	QualityGood      DataQuality = "good"      // ≤ 5% of months missing
	QualityFair      DataQuality = "fair"      // ≤ 15% of months missing
	QualityPoor      DataQuality = "poor"      // worse, or no data at all
)

// AssetAvailability describes one asset's historical coverage
type AssetAvailability struct {
	Ticker        string      `json:"ticker"`
	AvailableFrom time.Time   `json:"available_from"`
	AvailableTo   time.Time   `json:"available_to"`
	TotalMonths   int         `json:"total_months"`
	MissingMonths int         `json:"missing_months"`
	DataQuality   DataQuality `json:"data_quality"`
	Warnings      []string    `json:"warnings,omitempty"`
}

// CoverageReport is the verdict of the coverage validator: the effective
// simulation window (possibly narrower than requested) plus per-asset data
// quality. When IsValid is false the simulation must not run.
type CoverageReport struct {
	IsValid            bool                `json:"is_valid"`
	AdjustedStartDate  time.Time           `json:"adjusted_start_date"`
	AdjustedEndDate    time.Time           `json:"adjusted_end_date"`
	AssetsAvailability []AssetAvailability `json:"assets_availability"`
	GlobalWarnings     []string            `json:"global_warnings,omitempty"`
	Recommendations    []string            `json:"recommendations,omitempty"`
}

// TransactionType distinguishes share purchases from dividend cash inflows
type TransactionType string

const (
	TransactionBuy      TransactionType = "buy"
	TransactionDividend TransactionType = "dividend"
)

// Transaction is one immutable ledger entry, appended once per
// (month, ticker) event and never mutated afterward.
type Transaction struct {
	Month  int             `json:"month"` // sequence index, 0-based
	Date   time.Time       `json:"date"`
	Ticker string          `json:"ticker"`
	Type   TransactionType `json:"type"`

	// Contribution is the cash moved by this event: the cost of a purchase,
	// or the amount credited by a dividend payment.
	Contribution  decimal.Decimal `json:"contribution"`
	Price         decimal.Decimal `json:"price"`          // execution (or reference) price
	SharesAdded   decimal.Decimal `json:"shares_added"`   // zero for dividend entries
	TotalShares   decimal.Decimal `json:"total_shares"`   // cumulative for this ticker after the event
	TotalInvested decimal.Decimal `json:"total_invested"` // cumulative investor inflows, portfolio-wide
	// TotalContribution is the month's aggregate cash inflow
	// (contribution plus dividends credited that month).
	TotalContribution decimal.Decimal `json:"total_contribution"`
	PortfolioValue    decimal.Decimal `json:"portfolio_value"` // mark-to-market right after the event
	CashBalance       decimal.Decimal `json:"cash_balance"`    // running cash after the event

	// DividendPortion is the part of a purchase funded by dividend cash in
	// the month's pool, used for per-asset reinvestment attribution.
	DividendPortion decimal.Decimal `json:"dividend_portion"`
	// RebalanceBuy marks purchases executed on a rebalance boundary.
	RebalanceBuy bool `json:"rebalance_buy"`
}

// EvolutionPoint is one month's mark-to-market snapshot
type EvolutionPoint struct {
	Date          time.Time                  `json:"date"`
	Value         decimal.Decimal            `json:"value"`
	CashBalance   decimal.Decimal            `json:"cash_balance"`
	Holdings      map[string]decimal.Decimal `json:"holdings"` // ticker -> shares
	Prices        map[string]decimal.Decimal `json:"prices"`   // ticker -> price used for the snapshot
	MonthlyReturn float64                    `json:"monthly_return"`
}

// MonthlyReturn is one entry of the result's return series
type MonthlyReturn struct {
	Date           time.Time       `json:"date"`
	Return         float64         `json:"return"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	Contribution   decimal.Decimal `json:"contribution"` // the month's aggregate cash inflow
}

// AssetPerformance is the per-ticker attribution block of a result
type AssetPerformance struct {
	Ticker     string          `json:"ticker"`
	Allocation decimal.Decimal `json:"allocation"` // target allocation
	FinalValue decimal.Decimal `json:"final_value"`
	// TotalReturn uses Contribution as cost basis, deliberately ignoring
	// reinvested dividends in the denominator.
	TotalReturn float64 `json:"total_return"`
	// Contribution is investor cash invested in this ticker (purchases minus
	// their dividend-funded portion).
	Contribution decimal.Decimal `json:"contribution"`
	// Reinvestment is dividend cash that flowed back into purchases.
	Reinvestment decimal.Decimal `json:"reinvestment"`
	// RebalanceAmount is the sum of purchases executed on rebalance
	// boundaries. The model is buy-only, so this is never negative.
	RebalanceAmount decimal.Decimal `json:"rebalance_amount"`
	AveragePrice    decimal.Decimal `json:"average_price"`
	TotalShares     decimal.Decimal `json:"total_shares"`
	TotalDividends  decimal.Decimal `json:"total_dividends"`
}

// Result is the final report of a backtest run. Produced once, immutable.
type Result struct {
	TotalReturn      float64  `json:"total_return"`
	AnnualizedReturn float64  `json:"annualized_return"`
	Volatility       float64  `json:"volatility"`
	// SharpeRatio is nil when volatility is zero or the sample is a single
	// month; this is a degenerate computation, not an error.
	SharpeRatio *float64 `json:"sharpe_ratio"`
	MaxDrawdown float64  `json:"max_drawdown"`

	PositiveMonths int `json:"positive_months"`
	NegativeMonths int `json:"negative_months"`

	TotalInvested          decimal.Decimal `json:"total_invested"`
	FinalValue             decimal.Decimal `json:"final_value"`
	FinalCashReserve       decimal.Decimal `json:"final_cash_reserve"`
	TotalDividendsReceived decimal.Decimal `json:"total_dividends_received"`

	MonthlyReturns     []MonthlyReturn    `json:"monthly_returns"`
	PortfolioEvolution []EvolutionPoint   `json:"portfolio_evolution"`
	AssetPerformance   []AssetPerformance `json:"asset_performance"`
}

// Run bundles everything a single backtest execution produced.
// ID and CreatedAt are caller-facing metadata; the engine outputs themselves
// are bit-for-bit reproducible for identical inputs.
type Run struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Config    Config          `json:"config"`
	Report    *CoverageReport `json:"report"`
	Result    *Result         `json:"result"`
	Ledger    *Ledger         `json:"ledger"`
}

// sharePrecision is the number of decimal places carried on share counts
const sharePrecision = 6

// AllocationTolerance is how far from 1.0 the allocation sum may drift
var AllocationTolerance = decimal.NewFromFloat(0.001)
