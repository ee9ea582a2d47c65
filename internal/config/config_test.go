package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BACKFOLIO_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, 0.0, cfg.RiskFreeRate)
	assert.Equal(t, 168, cfg.CacheMaxAgeHours)
	assert.Equal(t, filepath.Join(cfg.DataDir, "history.db"), cfg.HistoryDBPath)

	require.NotNil(t, cfg.Backup)
	assert.False(t, cfg.Backup.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("BACKFOLIO_DATA_DIR", t.TempDir())
	t.Setenv("BACKFOLIO_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("BACKFOLIO_RISK_FREE_RATE", "0.02")
	t.Setenv("BACKFOLIO_CACHE_MAX_AGE_HOURS", "48")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, 0.02, cfg.RiskFreeRate)
	assert.Equal(t, 48, cfg.CacheMaxAgeHours)
}

func TestLoad_DataDirIsAbsolute(t *testing.T) {
	t.Setenv("BACKFOLIO_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
}

func TestLoad_BackupEnabledByBucket(t *testing.T) {
	t.Setenv("BACKFOLIO_DATA_DIR", t.TempDir())
	t.Setenv("BACKFOLIO_BACKUP_BUCKET", "backfolio-backups")
	t.Setenv("BACKFOLIO_BACKUP_ENDPOINT", "https://minio.local:9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Backup.Enabled)
	assert.Equal(t, "backfolio-backups", cfg.Backup.Bucket)
	assert.Equal(t, "https://minio.local:9000", cfg.Backup.Endpoint)
	assert.Equal(t, "auto", cfg.Backup.Region)
}

func TestLoad_BackupExplicitlyDisabled(t *testing.T) {
	t.Setenv("BACKFOLIO_DATA_DIR", t.TempDir())
	t.Setenv("BACKFOLIO_BACKUP_BUCKET", "backfolio-backups")
	t.Setenv("BACKFOLIO_BACKUP_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Backup.Enabled)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("BACKFOLIO_DATA_DIR", t.TempDir())
	t.Setenv("BACKFOLIO_PORT", "70000")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
}

func TestLoad_RiskFreeRateOutOfRange(t *testing.T) {
	t.Setenv("BACKFOLIO_DATA_DIR", t.TempDir())
	t.Setenv("BACKFOLIO_RISK_FREE_RATE", "2.5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "risk free rate")
}

func TestValidate_BackupRequiresBucket(t *testing.T) {
	cfg := &Config{
		Port:   8001,
		Backup: &BackupConfig{Enabled: true},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKFOLIO_BACKUP_BUCKET")
}
