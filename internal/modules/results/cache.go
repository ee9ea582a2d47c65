package results

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/backfolio/internal/modules/backtest"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Cache stores completed runs keyed by a hash of the request configuration.
// The engine is deterministic, so an identical configuration always produces
// an identical run and can be served from here. Entries live in the cache
// database (synchronous OFF); losing them only costs a re-simulation.
type Cache struct {
	cacheDB *sql.DB
	log     zerolog.Logger
}

// NewCache creates a new result cache.
func NewCache(cacheDB *sql.DB, log zerolog.Logger) *Cache {
	return &Cache{
		cacheDB: cacheDB,
		log:     log.With().Str("repo", "result_cache").Logger(),
	}
}

// Key derives the cache key for a configuration. json.Marshal emits struct
// fields in declaration order, so the same configuration always hashes the
// same.
func (c *Cache) Key(cfg backtest.Config) (string, error) {
	canonical, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config for cache key: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Get returns the cached run for a key, or (nil, nil) on a miss. A blob
// that fails to decode is treated as a miss and evicted.
func (c *Cache) Get(key string) (*backtest.Run, error) {
	var blob []byte
	err := c.cacheDB.QueryRow(`
		SELECT run_blob FROM result_cache WHERE config_hash = ?`, key).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query result cache: %w", err)
	}

	run, err := decodeCachedRun(blob)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Evicting undecodable cache entry")
		_, _ = c.cacheDB.Exec(`DELETE FROM result_cache WHERE config_hash = ?`, key)
		return nil, nil
	}

	return run, nil
}

// Put stores a run under a key, replacing any previous entry.
func (c *Cache) Put(key string, run *backtest.Run) error {
	if run == nil || run.Ledger == nil {
		return fmt.Errorf("cannot cache a nil run")
	}

	blob, err := encodeCachedRun(run)
	if err != nil {
		return err
	}

	_, err = c.cacheDB.Exec(`
		INSERT INTO result_cache (config_hash, run_id, created_at, run_blob)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(config_hash) DO UPDATE SET
			run_id = excluded.run_id,
			created_at = excluded.created_at,
			run_blob = excluded.run_blob`,
		key, run.ID, run.CreatedAt.Unix(), blob)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	return nil
}

// Prune deletes entries older than maxAge and returns how many were removed.
func (c *Cache) Prune(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Unix()
	res, err := c.cacheDB.Exec(`DELETE FROM result_cache WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune result cache: %w", err)
	}
	removed, _ := res.RowsAffected()
	if removed > 0 {
		c.log.Info().Int64("removed", removed).Msg("Pruned result cache")
	}
	return removed, nil
}

func encodeCachedRun(run *backtest.Run) ([]byte, error) {
	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	reportJSON, err := json.Marshal(run.Report)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal coverage report: %w", err)
	}
	resultJSON, err := json.Marshal(run.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	records := make([]transactionRecord, 0, run.Ledger.Len())
	for _, entry := range run.Ledger.Entries {
		records = append(records, toRecord(entry))
	}

	blob, err := msgpack.Marshal(cachedRun{
		ID:           run.ID,
		CreatedAt:    run.CreatedAt.Unix(),
		ConfigJSON:   configJSON,
		ReportJSON:   reportJSON,
		ResultJSON:   resultJSON,
		Transactions: records,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode cached run: %w", err)
	}
	return blob, nil
}

func decodeCachedRun(blob []byte) (*backtest.Run, error) {
	var rec cachedRun
	if err := msgpack.Unmarshal(blob, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode cached run: %w", err)
	}

	run := &backtest.Run{
		ID:        rec.ID,
		CreatedAt: time.Unix(rec.CreatedAt, 0).UTC(),
		Report:    &backtest.CoverageReport{},
		Result:    &backtest.Result{},
	}
	if err := json.Unmarshal(rec.ConfigJSON, &run.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached config: %w", err)
	}
	if err := json.Unmarshal(rec.ReportJSON, run.Report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached coverage report: %w", err)
	}
	if err := json.Unmarshal(rec.ResultJSON, run.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached result: %w", err)
	}

	entries := make([]backtest.Transaction, 0, len(rec.Transactions))
	for _, tr := range rec.Transactions {
		entry, err := fromRecord(tr)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	run.Ledger = &backtest.Ledger{Entries: entries}

	return run, nil
}
