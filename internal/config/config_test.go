package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults without a config file", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("CONFIG_PATH", filepath.Join(dir, "missing.json"))
		t.Setenv("PHOTO_STORAGE_PATH", filepath.Join(dir, "captures"))

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, ":5080", cfg.ServerAddress)
		assert.False(t, cfg.UsePostgres())
		assert.Equal(t, BackendHTTP, cfg.Remote.Backend)
		assert.Equal(t, 5, cfg.Sync.MaxAttempts)
		assert.Equal(t, time.Minute, cfg.Sync.Interval())
		assert.Equal(t, 500*time.Millisecond, cfg.Sync.InitialBackoff())
		assert.Equal(t, 10.0, cfg.Checklist.VoltageTolerancePct)
		assert.True(t, filepath.IsAbs(cfg.PhotoStorage.BasePath))
		assert.DirExists(t, cfg.PhotoStorage.BasePath)
	})

	t.Run("file values then env overrides", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.json")
		body := `{
			"serverAddress": ":9000",
			"remote": {"backend": "firestore", "firebaseProjectId": "field-prod"},
			"sync": {"maxAttempts": 8, "propertyIds": ["p-1"]},
			"photoStorage": {"basePath": "` + filepath.ToSlash(filepath.Join(dir, "photos")) + `"}
		}`
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))

		t.Setenv("CONFIG_PATH", path)
		t.Setenv("SERVER_ADDRESS", ":7000")
		t.Setenv("SYNC_PROPERTY_IDS", "p-2, p-3,")
		t.Setenv("VOLTAGE_TOLERANCE_PCT", "5")

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, ":7000", cfg.ServerAddress)
		assert.Equal(t, BackendFirestore, cfg.Remote.Backend)
		assert.Equal(t, "field-prod", cfg.Remote.FirebaseProjectID)
		assert.Equal(t, 8, cfg.Sync.MaxAttempts)
		assert.Equal(t, []string{"p-2", "p-3"}, cfg.Sync.PropertyIDs)
		assert.Equal(t, 5.0, cfg.Checklist.VoltageTolerancePct)
		assert.Equal(t, 10.0, cfg.Checklist.AmperageTolerancePct)
	})

	t.Run("invalid json is an error", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
		t.Setenv("CONFIG_PATH", path)

		_, err := Load()
		assert.Error(t, err)
	})
}
