// Package results persists completed backtest runs and caches their
// outcomes so an identical request can be answered without re-running
// the simulation.
package results

import (
	"fmt"
	"time"

	"github.com/aristath/backfolio/internal/modules/backtest"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

// transactionRecord is the storage shape of a ledger entry. Decimal values
// are stored as strings because decimal.Decimal has no exported fields and
// would otherwise encode to nothing.
type transactionRecord struct {
	Month             int    `msgpack:"month"`
	Date              int64  `msgpack:"date"` // Unix seconds, UTC
	Ticker            string `msgpack:"ticker"`
	Type              string `msgpack:"type"`
	Contribution      string `msgpack:"contribution"`
	Price             string `msgpack:"price"`
	SharesAdded       string `msgpack:"shares_added"`
	TotalShares       string `msgpack:"total_shares"`
	TotalInvested     string `msgpack:"total_invested"`
	TotalContribution string `msgpack:"total_contribution"`
	PortfolioValue    string `msgpack:"portfolio_value"`
	CashBalance       string `msgpack:"cash_balance"`
	DividendPortion   string `msgpack:"dividend_portion"`
	RebalanceBuy      bool   `msgpack:"rebalance_buy"`
}

func toRecord(t backtest.Transaction) transactionRecord {
	return transactionRecord{
		Month:             t.Month,
		Date:              t.Date.Unix(),
		Ticker:            t.Ticker,
		Type:              string(t.Type),
		Contribution:      t.Contribution.String(),
		Price:             t.Price.String(),
		SharesAdded:       t.SharesAdded.String(),
		TotalShares:       t.TotalShares.String(),
		TotalInvested:     t.TotalInvested.String(),
		TotalContribution: t.TotalContribution.String(),
		PortfolioValue:    t.PortfolioValue.String(),
		CashBalance:       t.CashBalance.String(),
		DividendPortion:   t.DividendPortion.String(),
		RebalanceBuy:      t.RebalanceBuy,
	}
}

func fromRecord(rec transactionRecord) (backtest.Transaction, error) {
	t := backtest.Transaction{
		Month:        rec.Month,
		Date:         time.Unix(rec.Date, 0).UTC(),
		Ticker:       rec.Ticker,
		Type:         backtest.TransactionType(rec.Type),
		RebalanceBuy: rec.RebalanceBuy,
	}

	fields := []struct {
		name string
		src  string
		dst  *decimal.Decimal
	}{
		{"contribution", rec.Contribution, &t.Contribution},
		{"price", rec.Price, &t.Price},
		{"shares_added", rec.SharesAdded, &t.SharesAdded},
		{"total_shares", rec.TotalShares, &t.TotalShares},
		{"total_invested", rec.TotalInvested, &t.TotalInvested},
		{"total_contribution", rec.TotalContribution, &t.TotalContribution},
		{"portfolio_value", rec.PortfolioValue, &t.PortfolioValue},
		{"cash_balance", rec.CashBalance, &t.CashBalance},
		{"dividend_portion", rec.DividendPortion, &t.DividendPortion},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return backtest.Transaction{}, fmt.Errorf("failed to parse %s %q: %w", f.name, f.src, err)
		}
		*f.dst = d
	}

	return t, nil
}

func encodeTransaction(t backtest.Transaction) ([]byte, error) {
	blob, err := msgpack.Marshal(toRecord(t))
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}
	return blob, nil
}

func decodeTransaction(blob []byte) (backtest.Transaction, error) {
	var rec transactionRecord
	if err := msgpack.Unmarshal(blob, &rec); err != nil {
		return backtest.Transaction{}, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return fromRecord(rec)
}

// cachedRun is the storage shape of a full run in the result cache. The
// three JSON documents match what the runs database stores, so cache hits
// and persisted runs deserialize through the same paths.
type cachedRun struct {
	ID           string              `msgpack:"id"`
	CreatedAt    int64               `msgpack:"created_at"` // Unix seconds, UTC
	ConfigJSON   []byte              `msgpack:"config_json"`
	ReportJSON   []byte              `msgpack:"report_json"`
	ResultJSON   []byte              `msgpack:"result_json"`
	Transactions []transactionRecord `msgpack:"transactions"`
}
