package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guilherme-santos/calsync/internal"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite3:///tmp/calsync.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite3:///tmp/calsync.db", cfg.DatabaseURL)
	assert.Equal(t, "*/15 * * * *", cfg.Sync.Cron)
	assert.Equal(t, 10, cfg.Sync.ProgressEvery)
	assert.Equal(t, 10, cfg.Sync.DayBatch)
	assert.Equal(t, 7, cfg.Sync.PastDays)
	assert.Equal(t, 30, cfg.Sync.FutureDays)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
database_url: postgres://calsync@localhost/calsync
timezone: Europe/Berlin
google:
  client_id: google-id
  client_secret: google-secret
sync:
  past_days: 1
  rate_limit: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://calsync@localhost/calsync", cfg.DatabaseURL)
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())
	assert.Equal(t, 1, cfg.Sync.PastDays)
	assert.Equal(t, 30, cfg.Sync.FutureDays)
	assert.Equal(t, 5.0, cfg.Sync.RateLimit)
	assert.Equal(t, internal.OAuthClient{ID: "google-id", Secret: "google-secret"}, cfg.Clients()[internal.PlatformGoogle])
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
database_url: postgres://calsync@localhost/calsync
sync:
  day_batch: 20
`)
	t.Setenv("DATABASE_URL", "sqlite3://calsync.db")
	t.Setenv("SYNC_DAY_BATCH", "5")
	t.Setenv("SYNC_MAX_CONCURRENT", "not a number")
	t.Setenv("AZURE_CLIENT_ID", "azure-id")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite3://calsync.db", cfg.DatabaseURL)
	assert.Equal(t, 5, cfg.Sync.DayBatch)
	assert.Equal(t, 4, cfg.Sync.MaxConcurrent)
	assert.Equal(t, "azure-id", cfg.Azure.ID)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := Load(writeConfig(t, "timezone: Mars/Olympus\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_url is required")
	assert.Contains(t, err.Error(), "invalid timezone")

	_, err = Load(writeConfig(t, "sync: [\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
