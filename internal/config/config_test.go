package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CEA_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5000, cfg.Sync.PageSize)
	assert.Equal(t, 1000, cfg.Sync.UpsertBatchSize)
	assert.Equal(t, 10, cfg.Sync.MovementSampleSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "data", cfg.Paths.DataDir)
	assert.False(t, cfg.HasStoreCredentials())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CEA_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("CEA_SERVER_PORT", "9090")
	t.Setenv("CEA_SYNC_PAGE_SIZE", "100")
	t.Setenv("CEA_STORE_URL", "https://store.example.com")
	t.Setenv("CEA_STORE_SERVICE_KEY", "service-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Sync.PageSize)
	assert.True(t, cfg.HasStoreCredentials())
}

func TestLoadFileMerge(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 7070
  read_timeout: 20s
sync:
  page_size: 2500
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))

	t.Setenv("CEA_CONFIG_FILE", configFile)
	t.Setenv("CEA_SYNC_PAGE_SIZE", "3000")

	cfg, err := Load()
	require.NoError(t, err)

	// Env wins over file; file wins over nothing.
	assert.Equal(t, 3000, cfg.Sync.PageSize)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 20*time.Second, cfg.Server.ReadTimeout)
}

func TestValidate(t *testing.T) {
	t.Setenv("CEA_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("CEA_LOGGING_LEVEL", "verbose")

	_, err := Load()
	assert.Error(t, err)
}
