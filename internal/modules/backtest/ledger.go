package backtest

import "github.com/shopspring/decimal"

// Ledger is the ordered, append-only record of every simulated cash movement
// and share purchase. It is both the audit trail exported to the caller and
// the input to the metrics calculator. Entries are appended in date order
// during simulation and never mutated or deleted afterward.
type Ledger struct {
	Entries []Transaction `json:"entries"`
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append adds one entry to the ledger
func (l *Ledger) Append(tx Transaction) {
	l.Entries = append(l.Entries, tx)
}

// Len returns the number of entries
func (l *Ledger) Len() int {
	return len(l.Entries)
}

// TotalInvested returns the cumulative investor inflows recorded by the
// final entry, or zero for an empty ledger. TotalInvested is non-decreasing
// across the ledger, so the last entry carries the total.
func (l *Ledger) TotalInvested() decimal.Decimal {
	if len(l.Entries) == 0 {
		return decimal.Zero
	}
	return l.Entries[len(l.Entries)-1].TotalInvested
}

// TotalDividends sums the cash credited by dividend entries
func (l *Ledger) TotalDividends() decimal.Decimal {
	total := decimal.Zero
	for _, tx := range l.Entries {
		if tx.Type == TransactionDividend {
			total = total.Add(tx.Contribution)
		}
	}
	return total
}

// ByTicker returns the entries for one ticker, preserving order
func (l *Ledger) ByTicker(ticker string) []Transaction {
	var out []Transaction
	for _, tx := range l.Entries {
		if tx.Ticker == ticker {
			out = append(out, tx)
		}
	}
	return out
}

// MonthInflow returns the aggregate cash inflow recorded for a month index,
// or zero when the month produced no ledger entries. The last entry of a
// month carries the complete aggregate, so the scan keeps the latest match.
func (l *Ledger) MonthInflow(month int) decimal.Decimal {
	inflow := decimal.Zero
	for _, tx := range l.Entries {
		if tx.Month == month {
			inflow = tx.TotalContribution
		}
	}
	return inflow
}
