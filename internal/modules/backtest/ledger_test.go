package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_Empty(t *testing.T) {
	ledger := NewLedger()

	assert.Equal(t, 0, ledger.Len())
	assert.True(t, ledger.TotalInvested().IsZero())
	assert.True(t, ledger.TotalDividends().IsZero())
	assert.Empty(t, ledger.ByTicker("VWCE"))
	assert.True(t, ledger.MonthInflow(0).IsZero())
}

func TestLedger_Aggregates(t *testing.T) {
	ledger := NewLedger()
	day := date(2020, time.January, 1)

	ledger.Append(Transaction{
		Month: 0, Date: day, Ticker: "VWCE", Type: TransactionBuy,
		Contribution: dec(6000), TotalInvested: dec(10000), TotalContribution: dec(10000),
	})
	ledger.Append(Transaction{
		Month: 0, Date: day, Ticker: "AGGH", Type: TransactionBuy,
		Contribution: dec(4000), TotalInvested: dec(10000), TotalContribution: dec(10000),
	})
	ledger.Append(Transaction{
		Month: 2, Date: day.AddDate(0, 2, 0), Ticker: "VWCE", Type: TransactionDividend,
		Contribution: dec(25.50), TotalInvested: dec(11000), TotalContribution: dec(525.50),
	})
	ledger.Append(Transaction{
		Month: 2, Date: day.AddDate(0, 2, 0), Ticker: "VWCE", Type: TransactionBuy,
		Contribution: dec(525.50), TotalInvested: dec(11000), TotalContribution: dec(525.50),
	})

	assert.Equal(t, 4, ledger.Len())
	assert.True(t, ledger.TotalInvested().Equal(dec(11000)))
	assert.True(t, ledger.TotalDividends().Equal(dec(25.50)))

	vwce := ledger.ByTicker("VWCE")
	require.Len(t, vwce, 3)
	assert.Equal(t, TransactionBuy, vwce[0].Type)
	assert.Equal(t, TransactionDividend, vwce[1].Type)

	assert.True(t, ledger.MonthInflow(0).Equal(dec(10000)))
	assert.True(t, ledger.MonthInflow(1).IsZero())
	assert.True(t, ledger.MonthInflow(2).Equal(dec(525.50)))
}
