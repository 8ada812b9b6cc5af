package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("MD_VAULT_PATH", "")
	t.Setenv("AGENT_CONFIG_DIR", "")
	t.Setenv("USE_FLYWAY", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "data/tasks.db", cfg.DatabasePath)
	require.False(t, cfg.ExportEnabled())
	require.False(t, cfg.UseFlyway)
}

func TestLoadVaultPathEnablesExport(t *testing.T) {
	t.Setenv("MD_VAULT_PATH", "/tmp/vault")
	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.ExportEnabled())
}
