// Package config loads and validates the system's configuration from YAML,
// with environment overrides for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/graphwright/graphwright/internal/graph"
	"github.com/graphwright/graphwright/internal/llm"
	"github.com/graphwright/graphwright/internal/resolve"
	"github.com/graphwright/graphwright/internal/types"
)

// OrchestratorConfig carries the state machine's policy knobs.
type OrchestratorConfig struct {
	// MaxRetries bounds how many times one step is retried before the
	// session escalates.
	MaxRetries int `yaml:"max_retries"`

	// EscalationTimeout bounds how long an escalation waits for a human.
	// Zero waits forever.
	EscalationTimeout time.Duration `yaml:"escalation_timeout"`

	// SnapshotDepth is how many hops of graph neighborhood resolution sees.
	SnapshotDepth int `yaml:"snapshot_depth"`

	// ToolTimeout bounds each tool invocation, independent of the
	// escalation timeout. Zero disables the per-call limit.
	ToolTimeout time.Duration `yaml:"tool_timeout"`
}

// CheckpointConfig locates the durable checkpoint store.
type CheckpointConfig struct {
	// Path is the checkpoint database directory. Empty selects the
	// in-memory store.
	Path string `yaml:"path"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the root configuration.
type Config struct {
	LLM          llm.ProviderConfig     `yaml:"llm"`
	Graph        graph.StoreConfig      `yaml:"graph"`
	Resolver     resolve.ResolverConfig `yaml:"resolver"`
	Orchestrator OrchestratorConfig     `yaml:"orchestrator"`
	Checkpoint   CheckpointConfig       `yaml:"checkpoint"`
	Logging      LoggingConfig          `yaml:"logging"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		LLM: llm.ProviderConfig{
			Provider: "openai",
			Timeout:  60 * time.Second,
		},
		Graph:    graph.DefaultStoreConfig(),
		Resolver: resolve.DefaultResolverConfig(),
		Orchestrator: OrchestratorConfig{
			MaxRetries:        3,
			SnapshotDepth:     2,
			EscalationTimeout: 0,
			ToolTimeout:       30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML file over the defaults. A missing path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, types.WrapError(types.CONFIG_LOAD_FAILED,
				fmt.Sprintf("failed to read config file %s", path), err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, types.WrapError(types.CONFIG_LOAD_FAILED,
				fmt.Sprintf("failed to parse config file %s", path), err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides pulls credentials from the environment so they never
// need to live in the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("NEO4J_PASSWORD"); v != "" && cfg.Graph.Password == "" {
		cfg.Graph.Password = v
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Graph.Validate(); err != nil {
		return err
	}
	if err := c.Resolver.Validate(); err != nil {
		return err
	}
	if c.Orchestrator.MaxRetries < 1 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "orchestrator max_retries must be at least 1")
	}
	if c.Orchestrator.EscalationTimeout < 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "orchestrator escalation_timeout cannot be negative")
	}
	if c.Orchestrator.SnapshotDepth < 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "orchestrator snapshot_depth cannot be negative")
	}
	if c.Orchestrator.ToolTimeout < 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "orchestrator tool_timeout cannot be negative")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("unknown logging level %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("unknown logging format %q", c.Logging.Format))
	}
	return nil
}
