package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "test")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 3000, cfg.Port)
	require.Equal(t, "release", cfg.Mode)
	require.Equal(t, time.Second, cfg.RateInterval)
	require.Equal(t, 32, cfg.SendQueue)
	require.Equal(t, 5, cfg.HistoryContext)
	require.NotEmpty(t, cfg.Assist.URL)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CONFIG_ENV", "test")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	yaml := "mode: debug\nport: 4000\nrate_interval: 2s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Mode)
	require.Equal(t, 4000, cfg.Port)
	require.Equal(t, 2*time.Second, cfg.RateInterval)
	// untouched keys keep their defaults
	require.Equal(t, "./web", cfg.StaticPath)
}

func TestLoad_BadValueIsAnError(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CONFIG_ENV", "test")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	yaml := "port: not-a-number\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.Error(t, err)
	require.Nil(t, cfg)
}
