package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "score.db", cfg.Store.SQLitePath)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.InDelta(t, 20.0, cfg.Store.RatePerSec, 0.001)
	assert.Equal(t, 10, cfg.Store.RateBurst)
	assert.Equal(t, 3, cfg.Store.Retry.MaxAttempts)
	assert.Equal(t, 500, cfg.Store.Retry.InitialBackoffMs)
	assert.Equal(t, 30000, cfg.Store.Retry.MaxBackoffMs)
	assert.InDelta(t, 2.0, cfg.Store.Retry.Multiplier, 0.001)
	assert.InDelta(t, 0.25, cfg.Store.Retry.JitterFraction, 0.001)
	assert.Equal(t, 500, cfg.Backfill.BatchSize)
	assert.Equal(t, 4, cfg.Backfill.Concurrency)
	assert.Equal(t, "failures.jsonl", cfg.Backfill.FailuresPath)
	assert.Equal(t, "checkpoint.json", cfg.Backfill.CheckpointPath)
	assert.Equal(t, "2025-08", cfg.Scoring.DatasetVersion)
	assert.Equal(t, 8643, cfg.Diag.ServePort)
	assert.Equal(t, 2000, cfg.Diag.SampleSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: sqlite
  sqlite_path: /tmp/scan.db
backfill:
  batch_size: 100
log:
  level: debug
  format: console
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/scan.db", cfg.Store.SQLitePath)
	assert.Equal(t, 100, cfg.Backfill.BatchSize)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, 4, cfg.Backfill.Concurrency)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("SCORECLI_STORE_DRIVER", "postgres")
	t.Setenv("SCORECLI_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("SCORECLI_BACKFILL_CONCURRENCY", "8")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Backfill.Concurrency)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with the defaults relevant to validation.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/scan"
	cfg.Backfill.BatchSize = 500
	cfg.Backfill.Concurrency = 4
	cfg.Diag.ServePort = 8643
	cfg.Diag.SampleSize = 2000
	return cfg
}

func TestValidateStore_PostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateStore_SQLiteNeedsPath(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "sqlite"

	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.sqlite_path is required")

	cfg.Store.SQLitePath = "scan.db"
	assert.NoError(t, cfg.Validate("store"))
}

func TestValidateStore_UnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be postgres or sqlite")
}

func TestValidateBackfillBounds(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("backfill"))

	cfg.Backfill.BatchSize = 0
	err := cfg.Validate("backfill")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backfill.batch_size must be between 1 and 10000")

	cfg.Backfill.BatchSize = 500
	cfg.Backfill.Concurrency = 65
	err = cfg.Validate("backfill")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backfill.concurrency must be between 1 and 64")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Diag.ServePort = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "diag.serve_port must be > 0")
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := &Config{}

	err := cfg.Validate("backfill")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "backfill.batch_size")
	assert.Contains(t, err.Error(), "backfill.concurrency")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
