package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	t.Setenv(configFileENV, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3690", cfg.ServerURL)
	assert.Equal(t, time.Second, cfg.JobPollInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.LogFlushDebounce)
	assert.Equal(t, 2000, cfg.LogMaxLines)
	assert.Equal(t, 8, cfg.SyncRowThreshold)
	assert.Equal(t, 3691, cfg.StatusPort)
}

func TestNewConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "romshelf.yaml")
	content := "server_url: http://catalog.local:9000\nlog_max_lines: 500\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv(configFileENV, path)

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "http://catalog.local:9000", cfg.ServerURL)
	assert.Equal(t, 500, cfg.LogMaxLines)
	// Untouched keys keep their defaults.
	assert.Equal(t, time.Second, cfg.JobPollInterval)
}

func TestNewEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "romshelf.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_url: http://file.local\n"), 0644))
	t.Setenv(configFileENV, path)
	t.Setenv("ROMSHELF_SERVER_URL", "http://env.local")
	t.Setenv("ROMSHELF_JOB_POLL_INTERVAL", "250ms")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "http://env.local", cfg.ServerURL)
	assert.Equal(t, 250*time.Millisecond, cfg.JobPollInterval)
}

func TestNewValidation(t *testing.T) {
	t.Setenv(configFileENV, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("ROMSHELF_LOG_MAX_LINES", "10")

	_, err := New()
	assert.Error(t, err)
}

func TestBroadcastURL(t *testing.T) {
	cfg := &Config{ServerURL: "http://catalog.local:9000"}
	assert.Equal(t, "ws://catalog.local:9000/channel", cfg.BroadcastURL())

	cfg = &Config{ServerURL: "https://catalog.local"}
	assert.Equal(t, "wss://catalog.local/channel", cfg.BroadcastURL())
	assert.Equal(t, "wss://catalog.local/jobs/abc/log", cfg.LogFeedURL("abc"))
}
