package results

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_KeyIsStable(t *testing.T) {
	cache := NewCache(testCacheDB(t), zerolog.Nop())
	run := sampleRun(t)

	key1, err := cache.Key(run.Config)
	require.NoError(t, err)
	key2, err := cache.Key(run.Config)
	require.NoError(t, err)

	assert.Equal(t, key1, key2)
	assert.Len(t, key1, 64) // sha256 hex
}

func TestCache_KeyDistinguishesConfigs(t *testing.T) {
	cache := NewCache(testCacheDB(t), zerolog.Nop())
	run := sampleRun(t)

	key1, err := cache.Key(run.Config)
	require.NoError(t, err)

	changed := run.Config
	changed.MonthlyContribution = decimal.NewFromInt(501)
	key2, err := cache.Key(changed)
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)
}

func TestCache_Miss(t *testing.T) {
	cache := NewCache(testCacheDB(t), zerolog.Nop())

	got, err := cache.Get("0000000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_PutAndGet(t *testing.T) {
	cache := NewCache(testCacheDB(t), zerolog.Nop())
	run := sampleRun(t)

	key, err := cache.Key(run.Config)
	require.NoError(t, err)
	require.NoError(t, cache.Put(key, run))

	got, err := cache.Get(key)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, run.ID, got.ID)
	assert.True(t, run.Result.FinalValue.Equal(got.Result.FinalValue))
	assert.Equal(t, run.Ledger.Len(), got.Ledger.Len())
	assert.True(t, got.Report.IsValid)
}

func TestCache_PutReplacesExistingEntry(t *testing.T) {
	cache := NewCache(testCacheDB(t), zerolog.Nop())
	run := sampleRun(t)
	rerun := sampleRun(t)

	key, err := cache.Key(run.Config)
	require.NoError(t, err)

	require.NoError(t, cache.Put(key, run))
	require.NoError(t, cache.Put(key, rerun))

	got, err := cache.Get(key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rerun.ID, got.ID)
}

func TestCache_EvictsUndecodableBlob(t *testing.T) {
	db := testCacheDB(t)
	cache := NewCache(db, zerolog.Nop())

	key := "deadbeef"
	_, err := db.Exec(`
		INSERT INTO result_cache (config_hash, run_id, created_at, run_blob)
		VALUES (?, ?, ?, ?)`, key, "some-run", time.Now().Unix(), []byte("garbage"))
	require.NoError(t, err)

	got, err := cache.Get(key)
	require.NoError(t, err)
	assert.Nil(t, got, "corrupt entries count as a miss")

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM result_cache WHERE config_hash = ?`, key).Scan(&count))
	assert.Equal(t, 0, count, "corrupt entries are evicted")
}

func TestCache_Prune(t *testing.T) {
	cache := NewCache(testCacheDB(t), zerolog.Nop())

	stale := sampleRun(t)
	stale.CreatedAt = time.Now().UTC().Add(-10 * 24 * time.Hour)
	fresh := sampleRun(t)

	staleKey, err := cache.Key(stale.Config)
	require.NoError(t, err)
	require.NoError(t, cache.Put(staleKey, stale))

	freshCfg := fresh.Config
	freshCfg.MonthlyContribution = decimal.NewFromInt(600)
	fresh.Config = freshCfg
	freshKey, err := cache.Key(fresh.Config)
	require.NoError(t, err)
	require.NoError(t, cache.Put(freshKey, fresh))

	removed, err := cache.Prune(7 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	gone, err := cache.Get(staleKey)
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := cache.Get(freshKey)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}
