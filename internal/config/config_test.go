package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, BackendBolt, cfg.Storage.Backend)
	assert.Equal(t, "data/monitor.db", cfg.Storage.BoltPath)
	assert.Equal(t, 180, cfg.Fetch.HistoryDays)
	assert.Equal(t, 7, cfg.Fetch.OverlapDays)
	assert.Equal(t, 5, cfg.Fetch.MetadataWorkers)
	assert.Equal(t, 5, cfg.Provider.ChartWorkers)
	assert.Equal(t, 30*time.Second, cfg.Provider.HTTPTimeout)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("MONITOR_STORAGE_BACKEND", "postgres")
	t.Setenv("MONITOR_STORAGE_POSTGRES_DSN", "postgres://u:p@localhost:5432/equities")
	t.Setenv("MONITOR_FETCH_HISTORY_DAYS", "365")
	t.Setenv("MONITOR_PROVIDER_PROFILE_RPS", "2.5")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, 365, cfg.Fetch.HistoryDays)
	assert.Equal(t, 2.5, cfg.Provider.ProfileRPS)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown backend", "MONITOR_STORAGE_BACKEND", "sqlite"},
		{"postgres without dsn", "MONITOR_STORAGE_BACKEND", "postgres"},
		{"zero workers", "MONITOR_FETCH_METADATA_WORKERS", "0"},
		{"negative overlap", "MONITOR_FETCH_OVERLAP_DAYS", "-1"},
		{"zero overlap", "MONITOR_FETCH_OVERLAP_DAYS", "0"},
		{"zero chart workers", "MONITOR_PROVIDER_CHART_WORKERS", "0"},
		{"bad clickhouse dsn", "MONITOR_STORAGE_CLICKHOUSE_DSN", "not a url"},
		{"unparsable int", "MONITOR_FETCH_HISTORY_DAYS", "many"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MONITOR_STORAGE_BACKEND=memory\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MONITOR_STORAGE_BACKEND") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}
