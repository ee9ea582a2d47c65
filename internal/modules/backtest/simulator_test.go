package backtest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aristath/backfolio/internal/modules/historical"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulate_EmptyWindow(t *testing.T) {
	sim := NewMonthlySimulator(zerolog.Nop())
	provider := historical.NewMemoryProvider()
	cfg := singleAssetConfig("VWCE", date(2020, time.January, 1), date(2020, time.December, 31))

	_, _, err := sim.Simulate(cfg, provider, date(2020, time.June, 1), date(2020, time.January, 1), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty simulation window")
}

func TestSimulate_InitialCapitalOnly(t *testing.T) {
	start := date(2020, time.January, 1)
	end := date(2020, time.December, 31)

	provider := historical.NewMemoryProvider()
	provider.SetSeries("VWCE", flatSeries(start, 12, 100))

	sim := NewMonthlySimulator(zerolog.Nop())
	ledger, evolution, err := sim.Simulate(singleAssetConfig("VWCE", start, end), provider, start, end, nil)
	require.NoError(t, err)

	// One initial purchase, then nothing: no contributions, no dividends
	require.Equal(t, 1, ledger.Len())
	initial := ledger.Entries[0]
	assert.Equal(t, TransactionBuy, initial.Type)
	assert.True(t, initial.SharesAdded.Equal(dec(120)), "got %s shares", initial.SharesAdded)
	assert.True(t, initial.Contribution.Equal(dec(12000)))
	assert.True(t, initial.CashBalance.IsZero())

	require.Len(t, evolution, 12)
	for _, point := range evolution {
		assert.True(t, point.Value.Equal(dec(12000)), "month %s: value %s", point.Date, point.Value)
		assert.True(t, point.CashBalance.IsZero())
	}
}

func TestSimulate_MonthlyContributions(t *testing.T) {
	start := date(2020, time.January, 1)
	end := date(2020, time.December, 31)

	cfg := singleAssetConfig("VWCE", start, end)
	cfg.MonthlyContribution = dec(1000)

	provider := historical.NewMemoryProvider()
	provider.SetSeries("VWCE", flatSeries(start, 12, 100))

	sim := NewMonthlySimulator(zerolog.Nop())
	ledger, evolution, err := sim.Simulate(cfg, provider, start, end, nil)
	require.NoError(t, err)

	// One buy per month: the initial purchase plus 11 contributions
	require.Equal(t, 12, ledger.Len())

	last := evolution[len(evolution)-1]
	assert.True(t, last.Holdings["VWCE"].Equal(dec(230)), "got %s shares", last.Holdings["VWCE"])
	assert.True(t, last.Value.Equal(dec(23000)))
	assert.True(t, ledger.TotalInvested().Equal(dec(23000)))
}

func TestSimulate_Deterministic(t *testing.T) {
	start := date(2019, time.January, 1)
	end := date(2021, time.December, 31)

	cfg := Config{
		Assets: []Asset{
			{Ticker: "VWCE", TargetAllocation: dec(0.7), AverageDividendYield: dec(0.02)},
			{Ticker: "AGGH", TargetAllocation: dec(0.3), AverageDividendYield: dec(0.03)},
		},
		StartDate:           start,
		EndDate:             end,
		InitialCapital:      dec(10000),
		MonthlyContribution: dec(750),
		RebalanceFrequency:  RebalanceQuarterly,
	}

	prices := make([]float64, 36)
	for i := range prices {
		prices[i] = 80 + float64(i%7)*3.17 // deterministic wobble
	}

	provider := historical.NewMemoryProvider()
	provider.SetSeries("VWCE", seriesWithPrices(start, prices))
	provider.SetSeries("AGGH", flatSeries(start, 36, 50))

	sim := NewMonthlySimulator(zerolog.Nop())

	ledger1, evolution1, err := sim.Simulate(cfg, provider, start, end, nil)
	require.NoError(t, err)
	ledger2, evolution2, err := sim.Simulate(cfg, provider, start, end, nil)
	require.NoError(t, err)

	json1, err := json.Marshal(struct {
		Ledger    *Ledger
		Evolution []EvolutionPoint
	}{ledger1, evolution1})
	require.NoError(t, err)
	json2, err := json.Marshal(struct {
		Ledger    *Ledger
		Evolution []EvolutionPoint
	}{ledger2, evolution2})
	require.NoError(t, err)

	assert.Equal(t, string(json1), string(json2))
}

func TestSimulate_CashConservation(t *testing.T) {
	start := date(2020, time.January, 1)
	end := date(2021, time.December, 31)

	cfg := Config{
		Assets: []Asset{
			{Ticker: "VWCE", TargetAllocation: dec(0.6), AverageDividendYield: dec(0.025)},
			{Ticker: "AGGH", TargetAllocation: dec(0.4)},
		},
		StartDate:           start,
		EndDate:             end,
		InitialCapital:      dec(10000),
		MonthlyContribution: dec(333.33),
		RebalanceFrequency:  RebalanceMonthly,
	}

	provider := historical.NewMemoryProvider()
	provider.SetSeries("VWCE", flatSeries(start, 24, 97.43))
	provider.SetSeries("AGGH", flatSeries(start, 24, 41.17))

	sim := NewMonthlySimulator(zerolog.Nop())
	ledger, evolution, err := sim.Simulate(cfg, provider, start, end, nil)
	require.NoError(t, err)

	// Buy-only model: shares are only ever added and cash never goes negative
	for _, tx := range ledger.Entries {
		assert.False(t, tx.SharesAdded.IsNegative(), "negative shares in %+v", tx)
		assert.False(t, tx.CashBalance.IsNegative(), "negative cash in %+v", tx)
		assert.False(t, tx.Contribution.IsNegative())
	}
	for _, point := range evolution {
		assert.False(t, point.CashBalance.IsNegative())
	}

	// Everything that came in was either spent on shares or is still cash
	totalBuys := decimal.Zero
	for _, tx := range ledger.Entries {
		if tx.Type == TransactionBuy {
			totalBuys = totalBuys.Add(tx.Contribution)
		}
	}
	inflows := ledger.TotalInvested().Add(ledger.TotalDividends())
	finalCash := evolution[len(evolution)-1].CashBalance
	assert.True(t, inflows.Equal(totalBuys.Add(finalCash)),
		"inflows %s != buys %s + cash %s", inflows, totalBuys, finalCash)
}

func TestSimulate_YieldModelDividendMonths(t *testing.T) {
	start := date(2020, time.January, 1)
	end := date(2020, time.December, 31)

	cfg := singleAssetConfig("DIVD", start, end)
	cfg.Assets[0].AverageDividendYield = dec(0.03)

	provider := historical.NewMemoryProvider()
	provider.SetSeries("DIVD", flatSeries(start, 12, 100))

	sim := NewMonthlySimulator(zerolog.Nop())
	ledger, _, err := sim.Simulate(cfg, provider, start, end, nil)
	require.NoError(t, err)

	var dividends []Transaction
	for _, tx := range ledger.Entries {
		if tx.Type == TransactionDividend {
			dividends = append(dividends, tx)
		}
	}

	// One third of the annual yield in each of March, August and October
	require.Len(t, dividends, 3)
	assert.Equal(t, time.March, dividends[0].Date.Month())
	assert.Equal(t, time.August, dividends[1].Date.Month())
	assert.Equal(t, time.October, dividends[2].Date.Month())

	// 120 shares * 100 * 1% = 120, then compounding through reinvestment
	assert.True(t, dividends[0].Contribution.Equal(dec(120)), "got %s", dividends[0].Contribution)
	assert.True(t, dividends[1].Contribution.Equal(dec(121.20)), "got %s", dividends[1].Contribution)
	assert.True(t, dividends[2].Contribution.Equal(dec(122.41)), "got %s", dividends[2].Contribution)

	// Dividend cash is reinvested the same month
	assert.True(t, ledger.Entries[len(ledger.Entries)-1].CashBalance.IsZero())
}

func TestSimulate_ActualDividendEventsTakePrecedence(t *testing.T) {
	start := date(2020, time.January, 1)
	end := date(2020, time.December, 31)

	cfg := singleAssetConfig("REAL", start, end)
	cfg.Assets[0].AverageDividendYield = dec(0.03) // ignored when events exist

	provider := historical.NewMemoryProvider()
	provider.SetSeries("REAL", flatSeries(start, 12, 100))
	provider.SetDividendEvents("REAL", []historical.DividendEvent{
		{Date: date(2020, time.May, 10), Amount: dec(0.50)},
	})

	sim := NewMonthlySimulator(zerolog.Nop())
	ledger, _, err := sim.Simulate(cfg, provider, start, end, nil)
	require.NoError(t, err)

	var dividends []Transaction
	for _, tx := range ledger.Entries {
		if tx.Type == TransactionDividend {
			dividends = append(dividends, tx)
		}
	}

	// No March/August/October yield payments, only the actual May event
	require.Len(t, dividends, 1)
	assert.Equal(t, time.May, dividends[0].Date.Month())
	assert.True(t, dividends[0].Contribution.Equal(dec(60)), "got %s", dividends[0].Contribution) // 120 shares * 0.50
}

func TestSimulate_CarryForwardMissingMonth(t *testing.T) {
	start := date(2020, time.January, 1)
	end := date(2020, time.April, 30)

	provider := historical.NewMemoryProvider()
	points := seriesWithPrices(start, []float64{100, 110, 115, 120})
	// Drop the March observation; the simulator must reuse February's price
	provider.SetSeries("GAPY", append(points[:2:2], points[3]))

	cfg := singleAssetConfig("GAPY", start, end)
	sim := NewMonthlySimulator(zerolog.Nop())
	_, evolution, err := sim.Simulate(cfg, provider, start, end, nil)
	require.NoError(t, err)

	require.Len(t, evolution, 4)
	assert.True(t, evolution[1].Prices["GAPY"].Equal(dec(110)))
	assert.True(t, evolution[2].Prices["GAPY"].Equal(dec(110)), "expected carry-forward, got %s", evolution[2].Prices["GAPY"])
	assert.True(t, evolution[3].Prices["GAPY"].Equal(dec(120)))
}

func TestSimulate_QuarterlyRebalanceSteersCashToUnderweight(t *testing.T) {
	start := date(2020, time.January, 1)
	end := date(2020, time.April, 30)

	cfg := Config{
		Assets: []Asset{
			{Ticker: "FLAT", TargetAllocation: dec(0.5)},
			{Ticker: "HOTT", TargetAllocation: dec(0.5)},
		},
		StartDate:           start,
		EndDate:             end,
		InitialCapital:      dec(12000),
		MonthlyContribution: dec(1000),
		RebalanceFrequency:  RebalanceQuarterly,
	}

	provider := historical.NewMemoryProvider()
	provider.SetSeries("FLAT", flatSeries(start, 4, 100))
	provider.SetSeries("HOTT", seriesWithPrices(start, []float64{100, 100, 100, 200}))

	sim := NewMonthlySimulator(zerolog.Nop())
	ledger, _, err := sim.Simulate(cfg, provider, start, end, nil)
	require.NoError(t, err)

	// April is the first quarterly boundary; HOTT has doubled, so the whole
	// pool must go to the underweighted FLAT
	var aprilBuys []Transaction
	for _, tx := range ledger.Entries {
		if tx.Month == 3 && tx.Type == TransactionBuy {
			aprilBuys = append(aprilBuys, tx)
		}
	}

	require.Len(t, aprilBuys, 1)
	assert.Equal(t, "FLAT", aprilBuys[0].Ticker)
	assert.True(t, aprilBuys[0].RebalanceBuy)
	assert.True(t, aprilBuys[0].SharesAdded.Equal(dec(10)), "got %s shares", aprilBuys[0].SharesAdded)

	// Off-boundary buys are plain target splits, not rebalance buys
	for _, tx := range ledger.Entries {
		if tx.Month > 0 && tx.Month < 3 && tx.Type == TransactionBuy {
			assert.False(t, tx.RebalanceBuy, "month %d should not be a boundary", tx.Month)
		}
	}
}

func TestSimulate_ProgressCallback(t *testing.T) {
	start := date(2020, time.January, 1)
	end := date(2020, time.December, 31)

	provider := historical.NewMemoryProvider()
	provider.SetSeries("VWCE", flatSeries(start, 12, 100))

	var calls []int
	progress := func(current, total int, message string) {
		assert.Equal(t, 12, total)
		assert.NotEmpty(t, message)
		calls = append(calls, current)
	}

	sim := NewMonthlySimulator(zerolog.Nop())
	_, _, err := sim.Simulate(singleAssetConfig("VWCE", start, end), provider, start, end, progress)
	require.NoError(t, err)

	require.Len(t, calls, 12)
	assert.Equal(t, 1, calls[0])
	assert.Equal(t, 12, calls[11])
}

func TestSimulate_UnknownRebalanceFrequency(t *testing.T) {
	start := date(2020, time.January, 1)
	end := date(2020, time.December, 31)

	provider := historical.NewMemoryProvider()
	provider.SetSeries("VWCE", flatSeries(start, 12, 100))

	cfg := singleAssetConfig("VWCE", start, end)
	cfg.RebalanceFrequency = RebalanceFrequency("daily")

	sim := NewMonthlySimulator(zerolog.Nop())
	_, _, err := sim.Simulate(cfg, provider, start, end, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rebalance frequency")
}

func TestSimulate_OffBoundaryInvestsOnlyNewCash(t *testing.T) {
	start := date(2020, time.January, 1)
	end := date(2020, time.April, 30)

	// Price 7 never divides the inflow evenly, so every purchase leaves a
	// sub-cent remainder behind in cash.
	cfg := Config{
		Assets: []Asset{
			{Ticker: "ODD", TargetAllocation: dec(1)},
		},
		StartDate:           start,
		EndDate:             end,
		InitialCapital:      dec(1000),
		MonthlyContribution: dec(1000),
		RebalanceFrequency:  RebalanceQuarterly,
	}

	provider := historical.NewMemoryProvider()
	provider.SetSeries("ODD", flatSeries(start, 4, 7))

	sim := NewMonthlySimulator(zerolog.Nop())
	ledger, evolution, err := sim.Simulate(cfg, provider, start, end, nil)
	require.NoError(t, err)
	require.Len(t, ledger.Entries, 4)

	// Off-boundary months spend at most the month's inflow; the remainder
	// stays in cash instead of compounding into the next month's buy.
	offBoundaryCost := decimal.RequireFromString("999.999994")
	for _, tx := range ledger.Entries[:3] {
		assert.False(t, tx.RebalanceBuy)
		assert.True(t, tx.Contribution.Equal(offBoundaryCost), "month %d cost %s", tx.Month, tx.Contribution)
		assert.True(t, tx.Contribution.LessThanOrEqual(dec(1000)))
	}

	// The April boundary sweeps the carried remainder back in, so its cost
	// exceeds the month's inflow by the accumulated dust.
	boundaryBuy := ledger.Entries[3]
	assert.True(t, boundaryBuy.RebalanceBuy)
	assert.True(t, boundaryBuy.Contribution.Equal(decimal.RequireFromString("1000.000015")),
		"boundary cost %s", boundaryBuy.Contribution)

	finalCash := evolution[len(evolution)-1].CashBalance
	assert.True(t, finalCash.Equal(decimal.RequireFromString("0.000003")), "final cash %s", finalCash)
}

func TestSimulate_TotalInvestedMonotonic(t *testing.T) {
	start := date(2020, time.January, 1)
	end := date(2021, time.December, 31)

	cfg := Config{
		Assets: []Asset{
			{Ticker: "VWCE", TargetAllocation: dec(0.6), AverageDividendYield: dec(0.025)},
			{Ticker: "AGGH", TargetAllocation: dec(0.4)},
		},
		StartDate:           start,
		EndDate:             end,
		InitialCapital:      dec(10000),
		MonthlyContribution: dec(500),
		RebalanceFrequency:  RebalanceMonthly,
	}

	provider := historical.NewMemoryProvider()
	provider.SetSeries("VWCE", flatSeries(start, 24, 97.43))
	provider.SetSeries("AGGH", flatSeries(start, 24, 41.17))

	sim := NewMonthlySimulator(zerolog.Nop())
	ledger, _, err := sim.Simulate(cfg, provider, start, end, nil)
	require.NoError(t, err)
	require.NotEmpty(t, ledger.Entries)

	// Cumulative invested capital never decreases across the ledger, and
	// dividend entries never inflate it: only the initial capital and the
	// monthly contributions count.
	prev := decimal.Zero
	for i, tx := range ledger.Entries {
		assert.True(t, tx.TotalInvested.GreaterThanOrEqual(prev),
			"entry %d: TotalInvested %s < previous %s", i, tx.TotalInvested, prev)
		prev = tx.TotalInvested
	}

	expected := dec(10000).Add(dec(500).Mul(decimal.NewFromInt(23)))
	assert.True(t, prev.Equal(expected), "final TotalInvested %s", prev)
	assert.True(t, ledger.TotalInvested().Equal(expected))
}
