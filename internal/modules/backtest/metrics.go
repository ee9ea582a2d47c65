package backtest

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// MetricsCalculator derives the summary statistics and per-asset attribution
// from a completed simulation's ledger and portfolio evolution. Pure
// aggregation: calling it twice on the same inputs yields identical results.
type MetricsCalculator struct {
	riskFreeRate float64
	log          zerolog.Logger
}

// NewMetricsCalculator creates a metrics calculator. riskFreeRate is a fixed
// external assumption (annualized decimal) used for the Sharpe ratio.
func NewMetricsCalculator(riskFreeRate float64, log zerolog.Logger) *MetricsCalculator {
	return &MetricsCalculator{
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("service", "metrics").Logger(),
	}
}

// Summarize produces the final report from the simulation outputs
func (c *MetricsCalculator) Summarize(ledger *Ledger, evolution []EvolutionPoint, cfg Config) (*Result, error) {
	if len(evolution) == 0 {
		return nil, fmt.Errorf("cannot summarize an empty evolution series")
	}

	months := len(evolution)
	last := evolution[months-1]

	// totalInvested comes from the ledger, not the nominal config, so runs
	// truncated by the coverage window are measured correctly.
	totalInvested := ledger.TotalInvested()
	finalValue := last.Value

	result := &Result{
		TotalInvested:          totalInvested,
		FinalValue:             finalValue,
		FinalCashReserve:       last.CashBalance,
		TotalDividendsReceived: ledger.TotalDividends(),
		PortfolioEvolution:     evolution,
	}

	if totalInvested.IsPositive() {
		ratio, _ := finalValue.Div(totalInvested).Float64()
		result.TotalReturn = ratio - 1
		if months > 0 && ratio > 0 {
			result.AnnualizedReturn = math.Pow(ratio, 12/float64(months)) - 1
		}
	}

	// Month 0 establishes the baseline; the return sample starts at month 1.
	returns := make([]float64, 0, months-1)
	for _, point := range evolution[1:] {
		returns = append(returns, point.MonthlyReturn)
		if point.MonthlyReturn > 0 {
			result.PositiveMonths++
		} else if point.MonthlyReturn < 0 {
			result.NegativeMonths++
		}
	}

	if len(returns) >= 2 {
		result.Volatility = stat.StdDev(returns, nil) * math.Sqrt(12)
	}

	// Sharpe is undefined on a degenerate sample: zero variance or fewer
	// than two months. Represented as nil rather than dividing by zero.
	if result.Volatility > 0 && months >= 2 {
		sharpe := (result.AnnualizedReturn - c.riskFreeRate) / result.Volatility
		result.SharpeRatio = &sharpe
	}

	result.MaxDrawdown = maxDrawdown(evolution)
	result.MonthlyReturns = c.buildReturnSeries(ledger, evolution)
	result.AssetPerformance = c.buildAttribution(ledger, evolution, cfg)

	c.log.Debug().
		Int("months", months).
		Float64("total_return", result.TotalReturn).
		Float64("annualized_return", result.AnnualizedReturn).
		Msg("Summarized backtest")

	return result, nil
}

// maxDrawdown tracks the largest peak-to-trough decline with a running peak
func maxDrawdown(evolution []EvolutionPoint) float64 {
	peak := 0.0
	deepest := 0.0
	for _, point := range evolution {
		value, _ := point.Value.Float64()
		if value > peak {
			peak = value
		}
		if peak > 0 {
			if drawdown := (peak - value) / peak; drawdown > deepest {
				deepest = drawdown
			}
		}
	}
	return deepest
}

// buildReturnSeries pairs each month's return with its value and cash inflow
func (c *MetricsCalculator) buildReturnSeries(ledger *Ledger, evolution []EvolutionPoint) []MonthlyReturn {
	series := make([]MonthlyReturn, 0, len(evolution))
	for m, point := range evolution {
		series = append(series, MonthlyReturn{
			Date:           point.Date,
			Return:         point.MonthlyReturn,
			PortfolioValue: point.Value,
			Contribution:   ledger.MonthInflow(m),
		})
	}
	return series
}

// tickerTotals accumulates one ticker's ledger aggregates
type tickerTotals struct {
	cashSpent       decimal.Decimal // all purchase costs
	reinvestment    decimal.Decimal // dividend-funded portion of purchases
	rebalanceAmount decimal.Decimal // purchases executed on rebalance boundaries
	sharesBought    decimal.Decimal
	dividends       decimal.Decimal // cash credited by dividend entries
}

// buildAttribution aggregates the ledger by ticker into the per-asset block
func (c *MetricsCalculator) buildAttribution(ledger *Ledger, evolution []EvolutionPoint, cfg Config) []AssetPerformance {
	totals := make(map[string]*tickerTotals, len(cfg.Assets))
	for _, asset := range cfg.Assets {
		totals[asset.Ticker] = &tickerTotals{}
	}

	for _, tx := range ledger.Entries {
		t, ok := totals[tx.Ticker]
		if !ok {
			continue
		}
		switch tx.Type {
		case TransactionBuy:
			t.cashSpent = t.cashSpent.Add(tx.Contribution)
			t.reinvestment = t.reinvestment.Add(tx.DividendPortion)
			t.sharesBought = t.sharesBought.Add(tx.SharesAdded)
			if tx.RebalanceBuy {
				t.rebalanceAmount = t.rebalanceAmount.Add(tx.Contribution)
			}
		case TransactionDividend:
			t.dividends = t.dividends.Add(tx.Contribution)
		}
	}

	last := evolution[len(evolution)-1]

	performance := make([]AssetPerformance, 0, len(cfg.Assets))
	for _, asset := range cfg.Assets {
		t := totals[asset.Ticker]

		totalShares := last.Holdings[asset.Ticker]
		lastPrice := last.Prices[asset.Ticker]
		finalValue := totalShares.Mul(lastPrice)

		averagePrice := decimal.Zero
		if t.sharesBought.IsPositive() {
			averagePrice = t.cashSpent.Div(t.sharesBought).Round(6)
		}

		// Investor cash only: the dividend-funded portion is reported
		// separately as reinvestment and excluded from the cost basis.
		contribution := t.cashSpent.Sub(t.reinvestment)

		totalReturn := 0.0
		if contribution.IsPositive() {
			ratio, _ := finalValue.Div(contribution).Float64()
			totalReturn = ratio - 1
		}

		performance = append(performance, AssetPerformance{
			Ticker:          asset.Ticker,
			Allocation:      asset.TargetAllocation,
			FinalValue:      finalValue,
			TotalReturn:     totalReturn,
			Contribution:    contribution,
			Reinvestment:    t.reinvestment,
			RebalanceAmount: t.rebalanceAmount,
			AveragePrice:    averagePrice,
			TotalShares:     totalShares,
			TotalDividends:  t.dividends,
		})
	}

	return performance
}
