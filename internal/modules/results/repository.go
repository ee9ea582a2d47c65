package results

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/backfolio/internal/database"
	"github.com/aristath/backfolio/internal/modules/backtest"
	"github.com/rs/zerolog"
)

// Repository stores completed runs in the runs database. Runs are written
// once and never updated; the ledger profile's synchronous(FULL) makes the
// write durable before SaveRun returns.
type Repository struct {
	runsDB *sql.DB
	log    zerolog.Logger
}

// NewRepository creates a new run repository.
func NewRepository(runsDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		runsDB: runsDB,
		log:    log.With().Str("repo", "results").Logger(),
	}
}

// SaveRun persists a completed run and its full transaction ledger in a
// single transaction.
func (r *Repository) SaveRun(run *backtest.Run) error {
	if run == nil || run.Ledger == nil {
		return fmt.Errorf("cannot save a nil run")
	}

	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	reportJSON, err := json.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("failed to marshal coverage report: %w", err)
	}
	resultJSON, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	return database.WithTransaction(r.runsDB, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO backtest_runs (id, created_at, config_json, report_json, result_json)
			VALUES (?, ?, ?, ?, ?)`,
			run.ID, run.CreatedAt.Unix(), string(configJSON), string(reportJSON), string(resultJSON))
		if err != nil {
			return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO backtest_transactions (run_id, seq, month, date, ticker, type, entry_blob)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare transaction insert: %w", err)
		}
		defer stmt.Close()

		for seq, entry := range run.Ledger.Entries {
			blob, err := encodeTransaction(entry)
			if err != nil {
				return err
			}
			if _, err := stmt.Exec(run.ID, seq, entry.Month, entry.Date.Unix(),
				entry.Ticker, string(entry.Type), blob); err != nil {
				return fmt.Errorf("failed to insert transaction %d for run %s: %w", seq, run.ID, err)
			}
		}

		r.log.Debug().
			Str("run_id", run.ID).
			Int("transactions", run.Ledger.Len()).
			Msg("Run persisted")
		return nil
	})
}

// GetRun loads a run by ID, including its full ledger. Returns (nil, nil)
// when the run does not exist.
func (r *Repository) GetRun(id string) (*backtest.Run, error) {
	var (
		createdAt  int64
		configJSON string
		reportJSON string
		resultJSON string
	)
	err := r.runsDB.QueryRow(`
		SELECT created_at, config_json, report_json, result_json
		FROM backtest_runs WHERE id = ?`, id).
		Scan(&createdAt, &configJSON, &reportJSON, &resultJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}

	run := &backtest.Run{
		ID:        id,
		CreatedAt: time.Unix(createdAt, 0).UTC(),
		Report:    &backtest.CoverageReport{},
		Result:    &backtest.Result{},
	}
	if err := json.Unmarshal([]byte(configJSON), &run.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config for run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(reportJSON), run.Report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal coverage report for run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(resultJSON), run.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result for run %s: %w", id, err)
	}

	entries, err := r.GetTransactions(id)
	if err != nil {
		return nil, err
	}
	run.Ledger = &backtest.Ledger{Entries: entries}

	return run, nil
}

// GetTransactions loads the ledger entries of a run in simulation order.
func (r *Repository) GetTransactions(runID string) ([]backtest.Transaction, error) {
	rows, err := r.runsDB.Query(`
		SELECT entry_blob FROM backtest_transactions
		WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions for run %s: %w", runID, err)
	}
	defer rows.Close()

	var entries []backtest.Transaction
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		entry, err := decodeTransaction(blob)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions for run %s: %w", runID, err)
	}

	return entries, nil
}

// ListRuns returns the most recent runs, newest first, without their
// ledgers. Ledgers are loaded on demand via GetRun or GetTransactions.
func (r *Repository) ListRuns(limit int) ([]backtest.Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.runsDB.Query(`
		SELECT id, created_at, config_json, report_json, result_json
		FROM backtest_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []backtest.Run
	for rows.Next() {
		var (
			run        backtest.Run
			createdAt  int64
			configJSON string
			reportJSON string
			resultJSON string
		)
		if err := rows.Scan(&run.ID, &createdAt, &configJSON, &reportJSON, &resultJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.CreatedAt = time.Unix(createdAt, 0).UTC()
		run.Report = &backtest.CoverageReport{}
		run.Result = &backtest.Result{}
		if err := json.Unmarshal([]byte(configJSON), &run.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config for run %s: %w", run.ID, err)
		}
		if err := json.Unmarshal([]byte(reportJSON), run.Report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal coverage report for run %s: %w", run.ID, err)
		}
		if err := json.Unmarshal([]byte(resultJSON), run.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result for run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

// CountRuns returns the total number of persisted runs.
func (r *Repository) CountRuns() (int, error) {
	var count int
	if err := r.runsDB.QueryRow(`SELECT COUNT(*) FROM backtest_runs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}
