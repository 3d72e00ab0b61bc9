package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 1500*time.Millisecond, cfg.AdvanceDelay())
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, ":memory:", cfg.Cache.Path)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://portal.example/api/v1
  timeout_sec: -5
workflow:
  advance_delay_ms: 500
`), 0o644))
	t.Setenv("AMBASSADOR_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://portal.example/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 30, cfg.API.TimeoutSec, "non-positive timeout falls back")
	assert.Equal(t, 500*time.Millisecond, cfg.AdvanceDelay())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_RejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unterminated"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultAppConfig()
	cfg.Notifications.PollIntervalSec = 15
	cfg.Display.Theme = "light"

	require.NoError(t, SaveConfig(path, cfg))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, got.PollInterval())
	assert.Equal(t, "light", got.Display.Theme)
}
