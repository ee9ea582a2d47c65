package historical

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// historySchema creates the price and dividend tables on first open.
// Dates are stored as Unix timestamps (midnight UTC), prices as text so the
// decimal representation survives the round-trip without binary float drift.
const historySchema = `
CREATE TABLE IF NOT EXISTS daily_prices (
	ticker    TEXT NOT NULL,
	date      INTEGER NOT NULL,
	adj_close TEXT NOT NULL,
	PRIMARY KEY (ticker, date)
);
CREATE INDEX IF NOT EXISTS idx_daily_prices_ticker ON daily_prices(ticker, date);

CREATE TABLE IF NOT EXISTS dividends (
	ticker TEXT NOT NULL,
	date   INTEGER NOT NULL,
	amount TEXT NOT NULL,
	PRIMARY KEY (ticker, date)
);
`

// HistoryDB provides access to historical price and dividend data.
// It implements SeriesProvider on top of the history database populated
// by the ingestion pipeline.
type HistoryDB struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryDB opens (or creates) the history database at the given path
func NewHistoryDB(path string, log zerolog.Logger) (*HistoryDB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}

	return &HistoryDB{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}, nil
}

// Close closes the underlying database connection
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// GetSeries fetches the full adjusted-close series for a ticker, ascending by date
func (h *HistoryDB) GetSeries(ticker string) ([]PricePoint, error) {
	query := `
		SELECT date, adj_close
		FROM daily_prices
		WHERE ticker = ?
		ORDER BY date ASC
	`

	rows, err := h.db.Query(query, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to query price series: %w", err)
	}
	defer rows.Close()

	var points []PricePoint
	for rows.Next() {
		var dateUnix int64
		var adjClose string

		if err := rows.Scan(&dateUnix, &adjClose); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}

		price, err := decimal.NewFromString(adjClose)
		if err != nil {
			return nil, fmt.Errorf("invalid stored price %q for %s: %w", adjClose, ticker, err)
		}

		points = append(points, PricePoint{
			Date:     time.Unix(dateUnix, 0).UTC(),
			AdjClose: price,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price series: %w", err)
	}

	return points, nil
}

// GetDividendEvents fetches actual dividend payments for a ticker, ascending by date.
// Returns nil (not an empty slice) when the ticker has no recorded events, so
// callers fall back to the assumed yield model.
func (h *HistoryDB) GetDividendEvents(ticker string) ([]DividendEvent, error) {
	query := `
		SELECT date, amount
		FROM dividends
		WHERE ticker = ?
		ORDER BY date ASC
	`

	rows, err := h.db.Query(query, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to query dividends: %w", err)
	}
	defer rows.Close()

	var events []DividendEvent
	for rows.Next() {
		var dateUnix int64
		var amountStr string

		if err := rows.Scan(&dateUnix, &amountStr); err != nil {
			return nil, fmt.Errorf("failed to scan dividend: %w", err)
		}

		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("invalid stored dividend %q for %s: %w", amountStr, ticker, err)
		}

		events = append(events, DividendEvent{
			Date:   time.Unix(dateUnix, 0).UTC(),
			Amount: amount,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dividends: %w", err)
	}

	return events, nil
}

// SyncSeries inserts or replaces a ticker's price series in a single transaction.
// Used by the data ingestion job; the engine itself only reads.
func (h *HistoryDB) SyncSeries(ticker string, points []PricePoint) error {
	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if Commit succeeds

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO daily_prices (ticker, date, adj_close)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(ticker, midnightUTC(p.Date).Unix(), p.AdjClose.String()); err != nil {
			return fmt.Errorf("failed to insert price for %s: %w", p.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	h.log.Info().
		Str("ticker", ticker).
		Int("count", len(points)).
		Msg("Synced price series")

	return nil
}

// SyncDividendEvents inserts or replaces a ticker's dividend history
func (h *HistoryDB) SyncDividendEvents(ticker string, events []DividendEvent) error {
	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO dividends (ticker, date, amount)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(ticker, midnightUTC(e.Date).Unix(), e.Amount.String()); err != nil {
			return fmt.Errorf("failed to insert dividend for %s: %w", e.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	h.log.Info().
		Str("ticker", ticker).
		Int("count", len(events)).
		Msg("Synced dividend events")

	return nil
}

// Tickers lists all tickers present in the history database
func (h *HistoryDB) Tickers() ([]string, error) {
	rows, err := h.db.Query("SELECT DISTINCT ticker FROM daily_prices ORDER BY ticker")
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickers: %w", err)
	}

	return tickers, nil
}

func midnightUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
