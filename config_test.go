package libsqlproxy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, StrategyHTTP, cfg.Strategy)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.WSHandshakeGrace)
	assert.Equal(t, 10*time.Second, cfg.WSBusTimeout)
	assert.Equal(t, 5, cfg.RetryAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.RetryInterval)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.False(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.Logging.Enabled)
}

func TestLoadConfigYAML_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "strategy: 1\nretry_attempts: 9\ntelemetry:\n  enabled: true\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfigYAML(path)
	require.NoError(t, err)
	assert.Equal(t, StrategyWebSocket, cfg.Strategy)
	assert.Equal(t, 9, cfg.RetryAttempts)
	assert.True(t, cfg.Telemetry.Enabled)
	// Untouched defaults survive the overlay.
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
}

func TestLoadConfigYAML_MissingFile(t *testing.T) {
	_, err := LoadConfigYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
