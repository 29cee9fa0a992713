package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridge.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 3*time.Second, cfg.Bridge.ReconnectDelay())
	assert.True(t, cfg.Policy.AllowWriteActions)
	assert.True(t, cfg.Policy.RequireWriteConfirmation)
}

func TestLoadHuJSONFile(t *testing.T) {
	path := writeConfig(t, `{
		// controller endpoint
		"bridge": {"url": "wss://eda.example/ws", "token": " abc ", "reconnect_delay_ms": -1,},
		"policy": {"allow_write_actions": false},
		"log": {"level": "verbose"},
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://eda.example/ws", cfg.Bridge.URL)
	assert.Equal(t, "abc", cfg.Bridge.Token)
	assert.Equal(t, defaultReconnectDelayMS, cfg.Bridge.ReconnectDelayMS)
	assert.False(t, cfg.Policy.AllowWriteActions)
	assert.True(t, cfg.Policy.RequireWriteConfirmation)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `{"bridge": {"token": "from-file"}, "ledger": {"redis_addr": "file:6379"}}`)
	t.Setenv("AIEDA_TOKEN", "from-env")
	t.Setenv("AIEDA_REQUIRE_WRITE_CONFIRMATION", "false")
	t.Setenv("AIEDA_LOG_LEVEL", "debug")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Bridge.Token)
	assert.Equal(t, "file:6379", cfg.Ledger.RedisAddr)
	assert.False(t, cfg.Policy.RequireWriteConfirmation)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "read config failed")

	_, err = Load(writeConfig(t, `{"bridge": `))
	assert.ErrorContains(t, err, "parse config failed")

	t.Setenv("AIEDA_RECONNECT_DELAY_MS", "soon")
	_, err = Load("")
	assert.ErrorContains(t, err, "parse env failed")
}
