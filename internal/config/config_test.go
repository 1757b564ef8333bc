package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 50, cfg.Log.File.MaxSizeMB)
	assert.Equal(t, 3, cfg.Log.File.MaxBackups)
	assert.Equal(t, "linux-le-64", cfg.Convert.Layout)
	assert.Equal(t, 3, cfg.Probe.Count)
	assert.Equal(t, 1000, cfg.Probe.IntervalMS)
	assert.Equal(t, 2000, cfg.Probe.TimeoutMS)
	assert.Equal(t, "evping", cfg.Probe.Tool)
}

func TestLoadFromFile(t *testing.T) {
	content := `
log:
  level: debug
  format: json
convert:
  layout: linux-le-32
probe:
  count: 10
  tool: evtraceroute
`
	path := filepath.Join(t.TempDir(), "netreplay.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "linux-le-32", cfg.Convert.Layout)
	assert.Equal(t, 10, cfg.Probe.Count)
	assert.Equal(t, "evtraceroute", cfg.Probe.Tool)

	// Unset keys still get defaults.
	assert.Equal(t, 1000, cfg.Probe.IntervalMS)
	assert.Equal(t, 50, cfg.Log.File.MaxSizeMB)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}
