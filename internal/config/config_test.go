package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadWithNoPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
}

func TestLoadReadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal.toml")
	contents := "db_path = \"/var/lib/portal/custom.sqlite\"\ncontrol_addr = \"0.0.0.0:9999\"\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/portal/custom.sqlite", cfg.DBPath)
	require.Equal(t, "0.0.0.0:9999", cfg.ControlAddr)
	require.Equal(t, Defaults().BackupPath, cfg.BackupPath)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("PORTAL_DB_PATH", "/tmp/env-override.sqlite")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "/tmp/env-override.sqlite", cfg.DBPath)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
