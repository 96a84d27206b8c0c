package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphwright/graphwright/internal/types"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "bolt://localhost:7687", cfg.Graph.URI)
	assert.Equal(t, 3, cfg.Orchestrator.MaxRetries)
	assert.Zero(t, cfg.Orchestrator.EscalationTimeout)
	assert.Equal(t, 30*time.Second, cfg.Orchestrator.ToolTimeout)
	assert.InDelta(t, 0.4, cfg.Resolver.Weights.Name, 0.001)
}

func TestLoadMissingPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Graph.URI, cfg.Graph.URI)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
graph:
  uri: bolt://graph.internal:7687
orchestrator:
  max_retries: 5
  escalation_timeout: 30m
resolver:
  weights:
    name: 0.5
    type: 0.2
    property: 0.2
    context: 0.1
logging:
  level: debug
  format: json
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bolt://graph.internal:7687", cfg.Graph.URI)
	assert.Equal(t, 5, cfg.Orchestrator.MaxRetries)
	assert.Equal(t, 30*time.Minute, cfg.Orchestrator.EscalationTimeout)
	assert.InDelta(t, 0.5, cfg.Resolver.Weights.Name, 0.001)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, 2, cfg.Orchestrator.SnapshotDepth)
}

func TestLoadRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{not yaml"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, types.CONFIG_LOAD_FAILED, types.CodeOf(err))
}

func TestValidateCatchesBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero retries", mutate: func(c *Config) { c.Orchestrator.MaxRetries = 0 }},
		{name: "negative timeout", mutate: func(c *Config) { c.Orchestrator.EscalationTimeout = -time.Second }},
		{name: "negative tool timeout", mutate: func(c *Config) { c.Orchestrator.ToolTimeout = -time.Second }},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "loud" }},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }},
		{name: "inverted thresholds", mutate: func(c *Config) { c.Resolver.CreateNewThreshold = 0.99 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, types.CONFIG_VALIDATION_FAILED, types.CodeOf(err))
		})
	}
}

func TestEnvOverridesFillCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}
