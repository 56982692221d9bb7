package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultStateDir(), cfg.StateDirectory)
	assert.Equal(t, filepath.Join(cfg.StateDirectory, DefaultJournalName), cfg.JournalPath)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.False(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.Monitor.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Monitor.Interval)
}

func TestLoadLayersFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noxinstall.yaml")
	content := `
state_directory: ` + dir + `
logging:
  level: debug
  format: json
  output: stdout
  time_format: unix
monitor:
  enabled: true
  interval: 10s
  window_size: 50
  memory_alert_percent: 70
  disk_alert_percent: 95
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.StateDirectory)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 10*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, 50, cfg.Monitor.WindowSize)
	// Untouched sections keep their defaults.
	assert.Equal(t, "none", cfg.Tracing.Exporter)
	assert.Equal(t, ":9464", cfg.Metrics.ListenAddress)
}

func TestLoadResolvesRelativePathsInStateDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noxinstall.yaml")
	content := `
state_directory: ` + dir + `
journal_path: custom.log
database_path: db/history.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "custom.log"), cfg.JournalPath)
	assert.Equal(t, filepath.Join(dir, "db", "history.db"), cfg.DatabasePath)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noxinstall.yaml")
	content := `
state_directory: ` + dir + `
logging:
  level: loud
  format: console
  output: stderr
  time_format: rfc3339
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "noxinstall.yaml")

	cfg := DefaultConfig()
	cfg.StateDirectory = dir
	cfg.Logging.Level = "warn"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", loaded.Logging.Level)
	assert.Equal(t, dir, loaded.StateDirectory)
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, expandTilde("~"))
	assert.Equal(t, filepath.Join(home, "x"), expandTilde("~/x"))
	assert.Equal(t, "/abs/path", expandTilde("/abs/path"))
	assert.Equal(t, "rel/path", expandTilde("rel/path"))
}

func TestTelemetryMapping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "/custom"

	tc := cfg.Telemetry("1.2.3")
	assert.Equal(t, "1.2.3", tc.ServiceVersion)
	assert.Equal(t, "debug", tc.Logging.Level)
	assert.True(t, tc.Metrics.Enabled)
	assert.Equal(t, "/custom", tc.Metrics.Path)
	assert.Equal(t, cfg.Monitor.Interval, tc.Monitor.Interval)
}
