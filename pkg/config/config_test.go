package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsOnly(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Load(nil, ""))

	cfg := m.Get()
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "hybrid", cfg.Scan.Mode)
	assert.Equal(t, 2*time.Second, cfg.Scan.PortTimeout)
	assert.Equal(t, 20, cfg.Scan.Workers)
	assert.NotEmpty(t, cfg.Database.Path)
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
log:
  level: debug
scan:
  mode: passive
  workers: 5
watcher:
  targets:
    - cidr: 192.168.1.0/24
      interval_seconds: 300
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m := NewManager()
	require.NoError(t, m.Load(nil, path))

	cfg := m.Get()
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "passive", cfg.Scan.Mode)
	assert.Equal(t, 5, cfg.Scan.Workers)
	require.Len(t, cfg.Watcher.Targets, 1)
	assert.Equal(t, "192.168.1.0/24", cfg.Watcher.Targets[0].CIDR)
	assert.Equal(t, 300, cfg.Watcher.Targets[0].IntervalSeconds)
}

func TestLoadMissingConfigFileIsSilent(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Load(nil, filepath.Join(t.TempDir(), "absent.yaml")))
	assert.Equal(t, "hybrid", m.Get().Scan.Mode)
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags)
	require.NoError(t, flags.Parse([]string{"--log.level=error"}))

	m := NewManager()
	require.NoError(t, m.Load(flags, path))
	assert.Equal(t, "error", m.Get().Log.Level)
}

func TestLoadDebugFlagForcesDebugLevel(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags)
	require.NoError(t, flags.Parse([]string{"--debug"}))

	m := NewManager()
	require.NoError(t, m.Load(flags, ""))
	assert.Equal(t, "debug", m.Get().Log.Level)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan:\n  mode: turbo\n"), 0o644))

	m := NewManager()
	assert.Error(t, m.Load(nil, path))

	path2 := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path2, []byte("watcher:\n  targets:\n    - cidr: not-a-cidr\n      interval_seconds: 60\n"), 0o644))

	m2 := NewManager()
	assert.Error(t, m2.Load(nil, path2))
}
