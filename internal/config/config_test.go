package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/onanski/pmm/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReturnsDefaultsWhenNoFilesGiven(t *testing.T) {
	cfg, err := config.Load("", "")
	require.NoError(t, err)
	assert.Equal(t, "pmm.db", cfg.LedgerPath)
	assert.Equal(t, config.BackendSQLite, cfg.Backend)
	assert.Equal(t, "cli", cfg.Caller)
	assert.True(t, cfg.Color)
}

func TestLoadAppliesTOMLDefaultsBeforeYAML(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "defaults.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(`
ledger_path = "/var/lib/pmm/ledger.db"
backend = "memory"
caller = "toml-caller"
`), 0o644))

	cfg, err := config.Load("", tomlPath)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/pmm/ledger.db", cfg.LedgerPath)
	assert.Equal(t, config.BackendMemory, cfg.Backend)
	assert.Equal(t, "toml-caller", cfg.Caller)
}

func TestLoadYAMLOverridesTOMLDefaults(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "defaults.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(`
ledger_path = "/var/lib/pmm/ledger.db"
backend = "memory"
`), 0o644))

	yamlPath := filepath.Join(dir, "pmm.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("backend: sqlite\ncaller: yaml-caller\n"), 0o644))

	cfg, err := config.Load(yamlPath, tomlPath)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/pmm/ledger.db", cfg.LedgerPath)
	assert.Equal(t, config.BackendSQLite, cfg.Backend)
	assert.Equal(t, "yaml-caller", cfg.Caller)
}

func TestLoadMissingYAMLFileIsNotAnError(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.NoError(t, err)
	assert.Equal(t, "pmm.db", cfg.LedgerPath)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	yamlPath := filepath.Join(t.TempDir(), "pmm.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("caller: yaml-caller\n"), 0o644))
	t.Setenv("PMM_CALLER", "env-caller")
	cfg, err := config.Load(yamlPath, "")
	require.NoError(t, err)
	assert.Equal(t, "env-caller", cfg.Caller)
}

func TestLoadLocalConfigReadsBackendAndColor(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.LocalConfigFile), []byte("backend: memory\ncolor: false\n"), 0o644))

	lc := config.LoadLocalConfig(dir)
	assert.Equal(t, config.BackendMemory, lc.Backend)
	require.NotNil(t, lc.Color)
	assert.False(t, *lc.Color)
}

func TestLoadLocalConfigToleratesMissingFile(t *testing.T) {
	lc := config.LoadLocalConfig(t.TempDir())
	assert.Equal(t, config.Backend(""), lc.Backend)
	assert.Nil(t, lc.Color)
}
