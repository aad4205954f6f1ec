package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides(t *testing.T) {
	t.Run("ISOMETRY_DB_PATH overrides storage path", func(t *testing.T) {
		t.Setenv("ISOMETRY_DB_PATH", "/tmp/custom.db")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "/tmp/custom.db", cfg.Storage.DBPath)
	})

	t.Run("ISOMETRY_POLL_INTERVAL_MS overrides subscription interval", func(t *testing.T) {
		t.Setenv("ISOMETRY_POLL_INTERVAL_MS", "2500")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, 2500, cfg.Subscription.PollIntervalMs)
	})

	t.Run("malformed ISOMETRY_POLL_INTERVAL_MS is ignored", func(t *testing.T) {
		t.Setenv("ISOMETRY_POLL_INTERVAL_MS", "not-a-number")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, 1000, cfg.Subscription.PollIntervalMs)
	})

	t.Run("ISOMETRY_IMPORT_TRANSACTIONAL=false disables transactions", func(t *testing.T) {
		t.Setenv("ISOMETRY_IMPORT_TRANSACTIONAL", "false")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.False(t, cfg.Import.Transactional)
	})
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Storage.DBPath, cfg.Storage.DBPath)
}

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "isometry.yaml")
	original := DefaultConfig()
	original.Storage.DBPath = "custom/path.db"
	original.Subscription.MaxRetries = 9

	require.NoError(t, original.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom/path.db", loaded.Storage.DBPath)
	assert.Equal(t, 9, loaded.Subscription.MaxRetries)
}
