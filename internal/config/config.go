// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir       string // Base directory for all databases (always absolute)
	HistoryDBPath string // Historical prices database (defaults to <DataDir>/history.db)
	LogLevel      string
	Port          int
	DevMode       bool

	// RiskFreeRate is the annualized decimal rate used for Sharpe ratios
	RiskFreeRate float64

	// CacheMaxAgeHours is how long cached results live before the nightly
	// prune removes them
	CacheMaxAgeHours int

	Backup *BackupConfig
}

// BackupConfig holds S3-compatible backup settings. Backups are disabled
// unless a bucket is configured.
type BackupConfig struct {
	Enabled         bool
	Bucket          string
	Prefix          string
	Endpoint        string // Custom endpoint for S3-compatible stores (e.g. R2, MinIO)
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic
	// 1. Check BACKFOLIO_DATA_DIR environment variable
	// 2. If not set, default to ./data
	// 3. Always resolve to absolute path
	// 4. Ensure directory exists
	dataDir := getEnv("BACKFOLIO_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	historyPath := getEnv("BACKFOLIO_HISTORY_DB", "")
	if historyPath == "" {
		historyPath = filepath.Join(absDataDir, "history.db")
	}

	cfg := &Config{
		DataDir:          absDataDir,
		HistoryDBPath:    historyPath,
		Port:             getEnvAsInt("BACKFOLIO_PORT", 8001),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		RiskFreeRate:     getEnvAsFloat("BACKFOLIO_RISK_FREE_RATE", 0.0),
		CacheMaxAgeHours: getEnvAsInt("BACKFOLIO_CACHE_MAX_AGE_HOURS", 24*7),
		Backup:           loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RiskFreeRate < -1 || c.RiskFreeRate > 1 {
		return fmt.Errorf("risk free rate %f out of range, expected a decimal like 0.02", c.RiskFreeRate)
	}
	if c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("backups enabled but BACKFOLIO_BACKUP_BUCKET is empty")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// loadBackupConfig loads S3 backup configuration. Enabled follows the
// presence of a bucket unless explicitly overridden.
func loadBackupConfig() *BackupConfig {
	bucket := getEnv("BACKFOLIO_BACKUP_BUCKET", "")
	return &BackupConfig{
		Enabled:         getEnvAsBool("BACKFOLIO_BACKUP_ENABLED", bucket != ""),
		Bucket:          bucket,
		Prefix:          getEnv("BACKFOLIO_BACKUP_PREFIX", "backfolio"),
		Endpoint:        getEnv("BACKFOLIO_BACKUP_ENDPOINT", ""),
		Region:          getEnv("BACKFOLIO_BACKUP_REGION", "auto"),
		AccessKeyID:     getEnv("BACKFOLIO_BACKUP_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKFOLIO_BACKUP_SECRET_ACCESS_KEY", ""),
	}
}
