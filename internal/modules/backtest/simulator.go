package backtest

import (
	"fmt"
	"time"

	"github.com/aristath/backfolio/internal/modules/historical"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ProgressFunc receives simulation progress: months processed so far out of
// the total. Used by callers to surface long runs; nil disables reporting.
type ProgressFunc func(current, total int, message string)

// MonthlySimulator replays history month by month, applying contributions,
// dividend payments and rebalancing to a running ledger of cash and
// per-ticker share counts.
//
// The state transition chain is strictly sequential: each month depends on
// the previous one, so months are never processed out of order or in
// parallel. Given identical inputs the output is bit-for-bit reproducible:
// no randomness, no wall-clock reads.
type MonthlySimulator struct {
	log zerolog.Logger
}

// NewMonthlySimulator creates a new simulator
func NewMonthlySimulator(log zerolog.Logger) *MonthlySimulator {
	return &MonthlySimulator{
		log: log.With().Str("service", "simulator").Logger(),
	}
}

// simulationState is the mutable accumulator owned exclusively by the
// simulator. It is created per run and never shared.
type simulationState struct {
	cash             decimal.Decimal
	holdings         map[string]decimal.Decimal // ticker -> shares
	totalInvested    decimal.Decimal            // initial capital + contributions applied
	totalContributed decimal.Decimal            // recurring contributions only
	totalDividends   decimal.Decimal
}

// assetSeries is one asset's data resolved onto the simulation months
type assetSeries struct {
	asset  Asset
	prices []decimal.Decimal          // one entry per month, carry-forward resolved
	payout map[int]decimal.Decimal    // month index -> actual per-share dividend, nil for yield model
}

// Simulate runs the monthly state machine over [effectiveStart, effectiveEnd]
// and returns the transaction ledger and the month-by-month portfolio
// evolution. The window must come from an accepted coverage report; inside
// it, a month with no observation uses the last known price and the run
// never aborts.
func (s *MonthlySimulator) Simulate(
	cfg Config,
	provider historical.SeriesProvider,
	effectiveStart, effectiveEnd time.Time,
	progress ProgressFunc,
) (*Ledger, []EvolutionPoint, error) {
	months := monthsIn(effectiveStart, effectiveEnd)
	if len(months) == 0 {
		return nil, nil, fmt.Errorf("empty simulation window %s to %s",
			effectiveStart.Format("2006-01-02"), effectiveEnd.Format("2006-01-02"))
	}

	// Validated configs never reach here with an unknown frequency, but
	// Simulate is exported and must not panic on a zero interval.
	interval := cfg.RebalanceFrequency.monthInterval()
	if interval == 0 {
		return nil, nil, fmt.Errorf("unknown rebalance frequency %q", cfg.RebalanceFrequency)
	}

	series, err := s.resolveSeries(cfg, provider, months)
	if err != nil {
		return nil, nil, err
	}

	ledger := NewLedger()
	evolution := make([]EvolutionPoint, 0, len(months))

	state := &simulationState{
		cash:             cfg.InitialCapital,
		holdings:         make(map[string]decimal.Decimal, len(cfg.Assets)),
		totalInvested:    cfg.InitialCapital,
		totalContributed: decimal.Zero,
		totalDividends:   decimal.Zero,
	}

	prevValue := decimal.Zero

	for m, month := range months {
		monthInflow := decimal.Zero
		dividendCash := decimal.Zero

		if m == 0 {
			monthInflow = cfg.InitialCapital
		} else {
			// 1. Recurring contribution (zero models "initial capital only")
			if cfg.MonthlyContribution.IsPositive() {
				state.cash = state.cash.Add(cfg.MonthlyContribution)
				state.totalInvested = state.totalInvested.Add(cfg.MonthlyContribution)
				state.totalContributed = state.totalContributed.Add(cfg.MonthlyContribution)
				monthInflow = cfg.MonthlyContribution
			}

			// 2. Dividend payments into the shared cash pool
			dividendCash = s.payDividends(state, series, m, month, ledger, monthInflow)
			monthInflow = monthInflow.Add(dividendCash)
		}

		// 3. Allocate the pooled cash. On a rebalance boundary every cent is
		// steered toward underweighted assets; off-boundary months split new
		// cash by target allocation without correcting drift. Month 0 is the
		// initial buy, which is a plain target-allocation split by definition.
		boundary := m > 0 && m%interval == 0
		allocations := s.allocateCash(state, series, m, boundary, monthInflow)

		// 4. Execute purchases at this month's prices
		s.executePurchases(state, series, allocations, m, month, boundary, dividendCash, monthInflow, ledger)

		// 5. Mark-to-market snapshot
		point := s.markToMarket(state, series, m, month, prevValue)
		evolution = append(evolution, point)
		prevValue = point.Value

		if progress != nil {
			progress(m+1, len(months), month.Format("2006-01"))
		}
	}

	s.log.Debug().
		Int("months", len(months)).
		Int("transactions", ledger.Len()).
		Str("final_value", evolution[len(evolution)-1].Value.String()).
		Msg("Simulation complete")

	return ledger, evolution, nil
}

// resolveSeries projects each asset's price series onto the simulation months
// (carry-forward) and indexes actual dividend events by month.
func (s *MonthlySimulator) resolveSeries(
	cfg Config,
	provider historical.SeriesProvider,
	months []time.Time,
) ([]assetSeries, error) {
	resolved := make([]assetSeries, 0, len(cfg.Assets))

	for _, asset := range cfg.Assets {
		points, err := provider.GetSeries(asset.Ticker)
		if err != nil {
			return nil, fmt.Errorf("failed to load series for %s: %w", asset.Ticker, err)
		}
		if len(points) == 0 {
			return nil, fmt.Errorf("no historical data for %s inside an approved window", asset.Ticker)
		}

		prices := make([]decimal.Decimal, len(months))
		idx := 0
		last := points[0].AdjClose // forward-fill before the first observation
		for i, month := range months {
			ref := monthEnd(month)
			for idx < len(points) && !points[idx].Date.After(ref) {
				last = points[idx].AdjClose
				idx++
			}
			prices[i] = last
		}

		events, err := provider.GetDividendEvents(asset.Ticker)
		if err != nil {
			return nil, fmt.Errorf("failed to load dividend events for %s: %w", asset.Ticker, err)
		}

		var payout map[int]decimal.Decimal
		if events != nil {
			payout = make(map[int]decimal.Decimal)
			for _, e := range events {
				for i, month := range months {
					if !e.Date.Before(month) && !e.Date.After(monthEnd(month)) {
						payout[i] = payout[i].Add(e.Amount)
						break
					}
				}
			}
		}

		resolved = append(resolved, assetSeries{asset: asset, prices: prices, payout: payout})
	}

	return resolved, nil
}

// payDividends credits dividend cash for month m and records one ledger
// entry per paying asset. Actual dividend events take precedence; otherwise
// the assumed yield model pays one third of the annual yield in each
// dividend month. Returns the total dividend cash credited.
func (s *MonthlySimulator) payDividends(
	state *simulationState,
	series []assetSeries,
	m int,
	month time.Time,
	ledger *Ledger,
	inflowSoFar decimal.Decimal,
) decimal.Decimal {
	total := decimal.Zero

	for _, as := range series {
		shares := state.holdings[as.asset.Ticker]
		if shares.IsZero() {
			continue
		}

		var amount decimal.Decimal
		price := as.prices[m]

		if as.payout != nil {
			perShare, ok := as.payout[m]
			if !ok {
				continue
			}
			amount = shares.Mul(perShare).Round(2)
		} else {
			if as.asset.AverageDividendYield.IsZero() || !isDividendMonth(month) {
				continue
			}
			monthlyYield := as.asset.AverageDividendYield.Div(decimal.NewFromInt(3))
			amount = shares.Mul(price).Mul(monthlyYield).Round(2)
		}

		if !amount.IsPositive() {
			continue
		}

		state.cash = state.cash.Add(amount)
		state.totalDividends = state.totalDividends.Add(amount)
		total = total.Add(amount)

		ledger.Append(Transaction{
			Month:             m,
			Date:              month,
			Ticker:            as.asset.Ticker,
			Type:              TransactionDividend,
			Contribution:      amount,
			Price:             price,
			SharesAdded:       decimal.Zero,
			TotalShares:       shares,
			TotalInvested:     state.totalInvested,
			TotalContribution: inflowSoFar.Add(total),
			PortfolioValue:    s.portfolioValue(state, series, m),
			CashBalance:       state.cash,
		})
	}

	return total
}

// allocateCash decides how much of the current cash pool each asset gets.
//
// On a rebalance boundary the whole pool is distributed proportionally to
// each asset's deficit against its target weight (buy-only: overweight
// assets simply receive nothing; shares are never sold). Off-boundary months
// split only the month's inflow by target allocation; the truncation
// remainder carried in cash waits for the next boundary to be swept in.
func (s *MonthlySimulator) allocateCash(
	state *simulationState,
	series []assetSeries,
	m int,
	boundary bool,
	inflow decimal.Decimal,
) []decimal.Decimal {
	allocations := make([]decimal.Decimal, len(series))
	pool := state.cash
	if !pool.IsPositive() {
		return allocations
	}

	if boundary {
		values := make([]decimal.Decimal, len(series))
		total := pool
		for i, as := range series {
			values[i] = state.holdings[as.asset.Ticker].Mul(as.prices[m])
			total = total.Add(values[i])
		}

		deficits := make([]decimal.Decimal, len(series))
		deficitSum := decimal.Zero
		for i, as := range series {
			desired := total.Mul(as.asset.TargetAllocation)
			if deficit := desired.Sub(values[i]); deficit.IsPositive() {
				deficits[i] = deficit
				deficitSum = deficitSum.Add(deficit)
			}
		}

		if deficitSum.IsPositive() {
			for i := range series {
				if deficits[i].IsPositive() {
					allocations[i] = pool.Mul(deficits[i]).Div(deficitSum)
				}
			}
			return allocations
		}

		// Perfectly balanced (or everything overweight): plain target split
		// of the whole pool so the cash still gets invested.
		for i, as := range series {
			allocations[i] = pool.Mul(as.asset.TargetAllocation)
		}
		return allocations
	}

	if !inflow.IsPositive() {
		return allocations
	}
	for i, as := range series {
		allocations[i] = inflow.Mul(as.asset.TargetAllocation)
	}
	return allocations
}

// executePurchases buys shares with each asset's allocation at this month's
// price, appending one ledger entry per non-zero trade.
func (s *MonthlySimulator) executePurchases(
	state *simulationState,
	series []assetSeries,
	allocations []decimal.Decimal,
	m int,
	month time.Time,
	boundary bool,
	dividendCash decimal.Decimal,
	monthInflow decimal.Decimal,
	ledger *Ledger,
) {
	pool := state.cash

	for i, as := range series {
		alloc := allocations[i]
		if !alloc.IsPositive() {
			continue
		}

		price := as.prices[m]
		if !price.IsPositive() {
			continue
		}

		// Truncate so the cost never exceeds the allocation; the remainder
		// stays in cash and is carried forward to the next month.
		shares := alloc.Div(price).Truncate(sharePrecision)
		if shares.IsZero() {
			continue
		}

		cost := shares.Mul(price)
		state.cash = state.cash.Sub(cost)
		state.holdings[as.asset.Ticker] = state.holdings[as.asset.Ticker].Add(shares)

		// Attribute the dividend-funded fraction of this purchase for
		// per-asset reinvestment reporting.
		dividendPortion := decimal.Zero
		if dividendCash.IsPositive() && pool.IsPositive() {
			dividendPortion = cost.Mul(dividendCash).Div(pool).Round(2)
		}

		ledger.Append(Transaction{
			Month:             m,
			Date:              month,
			Ticker:            as.asset.Ticker,
			Type:              TransactionBuy,
			Contribution:      cost,
			Price:             price,
			SharesAdded:       shares,
			TotalShares:       state.holdings[as.asset.Ticker],
			TotalInvested:     state.totalInvested,
			TotalContribution: monthInflow,
			PortfolioValue:    s.portfolioValue(state, series, m),
			CashBalance:       state.cash,
			DividendPortion:   dividendPortion,
			RebalanceBuy:      boundary,
		})
	}
}

// portfolioValue marks the portfolio to market at month m's prices
func (s *MonthlySimulator) portfolioValue(state *simulationState, series []assetSeries, m int) decimal.Decimal {
	value := state.cash
	for _, as := range series {
		if shares := state.holdings[as.asset.Ticker]; !shares.IsZero() {
			value = value.Add(shares.Mul(as.prices[m]))
		}
	}
	return value
}

// markToMarket produces the month's evolution snapshot
func (s *MonthlySimulator) markToMarket(
	state *simulationState,
	series []assetSeries,
	m int,
	month time.Time,
	prevValue decimal.Decimal,
) EvolutionPoint {
	value := s.portfolioValue(state, series, m)

	holdings := make(map[string]decimal.Decimal, len(series))
	prices := make(map[string]decimal.Decimal, len(series))
	for _, as := range series {
		holdings[as.asset.Ticker] = state.holdings[as.asset.Ticker]
		prices[as.asset.Ticker] = as.prices[m]
	}

	monthlyReturn := 0.0
	if m > 0 && prevValue.IsPositive() {
		monthlyReturn, _ = value.Div(prevValue).Sub(decimal.NewFromInt(1)).Float64()
	}

	return EvolutionPoint{
		Date:          month,
		Value:         value,
		CashBalance:   state.cash,
		Holdings:      holdings,
		Prices:        prices,
		MonthlyReturn: monthlyReturn,
	}
}
