package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadNoFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	want := Defaults()
	assert.Equal(t, want.Reasoning, cfg.Reasoning)
	assert.Equal(t, want.StateProvider.Kind, cfg.StateProvider.Kind)
	assert.Equal(t, want.Bus.Kind, cfg.Bus.Kind)
}

func TestLoadYAMLFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
reasoning:
  max_iterations: 5
  force_strategy: deep
state_provider:
  kind: memory
anthropic:
  model: claude-opus-4
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Reasoning.MaxIterations)
	assert.Equal(t, "deep", cfg.Reasoning.ForceStrategy)
	assert.Equal(t, "memory", cfg.StateProvider.Kind)
	assert.Equal(t, "claude-opus-4", cfg.Anthropic.Model)
	// unset fields keep their defaults
	assert.Equal(t, Defaults().Reasoning.MinQualityDirect, cfg.Reasoning.MinQualityDirect)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConnectionConfigDurationHelpers(t *testing.T) {
	c := ConnectionConfig{CheckIntervalSeconds: 30, HealthTimeoutSeconds: 5}
	assert.Equal(t, "30s", c.CheckInterval().String())
	assert.Equal(t, "5s", c.HealthTimeout().String())
}
