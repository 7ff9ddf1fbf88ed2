package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigLoader_DefaultsWhenMissing(t *testing.T) {
	loader := NewConfigLoader("", "LSSTEST", t.TempDir())
	cfg, err := loader.LoadConfig()
	require.NoError(t, err)

	assert.False(t, loader.Found())
	assert.Equal(t, "", loader.GetConfigPath())
	assert.Equal(t, 1, cfg.Engine.MaxConcurrency)
	assert.Equal(t, "./temp", cfg.Engine.TempDir)
	assert.Equal(t, "plugin.json", cfg.Engine.PluginFile)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "http://127.0.0.1:17480", cfg.Server.BaseURL())
}

func TestConfigLoader_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	content := `
log:
  level: debug
  format: json
engine:
  max_concurrency: 3
  temp_dir: /var/tmp/lss
  log_poll_interval: 250ms
server:
  host: 0.0.0.0
  port: 9000
`
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("LSSTEST_SERVER_PORT", "9100")

	loader := NewConfigLoader(path, "LSSTEST")
	cfg, err := loader.LoadConfig()
	require.NoError(t, err)

	assert.True(t, loader.Found())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 3, cfg.Engine.MaxConcurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.LogPollInterval)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "http://127.0.0.1:9100", cfg.Server.BaseURL())
}

func TestConfig_ValidateCoercesConcurrency(t *testing.T) {
	cfg := &Config{
		Log:     &LogConfig{},
		Engine:  &EngineConfig{MaxConcurrency: 0, TempDir: "t"},
		Server:  &ServerConfig{Port: 80},
		Backend: &BackendConfig{},
	}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Engine.MaxConcurrency)

	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate())
}
