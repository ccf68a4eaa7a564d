// Package config loads the runtime configuration from spec.md §6 via
// github.com/spf13/viper (layered file + env + defaults), with
// gopkg.in/yaml.v3 as the on-disk format — both per the teacher's and
// the wider pack's idiom. Ported from the teacher's pkg/config/config.go
// struct-of-sections shape, trimmed of the CLI-wide sections (git clone
// policy, personality, IPC, worktrees, UI) that belong to the teacher's
// larger surface and are out of scope here.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// ReasoningConfig covers the scheduler's strategy/quality-gate options.
type ReasoningConfig struct {
	MaxIterations    int     `yaml:"max_iterations"`
	MinQualityDirect float64 `yaml:"min_quality_direct"`
	MinQualityLight  float64 `yaml:"min_quality_light"`
	MinQualityDeep   float64 `yaml:"min_quality_deep"`
	MinConfidence    float64 `yaml:"min_confidence"`
	ForceStrategy    string  `yaml:"force_strategy"` // "direct" | "light" | "deep" | ""
}

// ConnectionConfig covers the MCP connection manager's health-check and
// reconnection-backoff parameters.
type ConnectionConfig struct {
	CheckIntervalSeconds int     `yaml:"check_interval"`
	HealthTimeoutSeconds int     `yaml:"health_timeout"`
	BaseBackoffSeconds   float64 `yaml:"base_backoff"`
	CeilingBackoffSeconds float64 `yaml:"ceiling_backoff"`
	JitterMin            float64 `yaml:"jitter_min"`
	JitterMax            float64 `yaml:"jitter_max"`
	MaxAttempts          int     `yaml:"max_attempts"`
}

// ConversationConfig covers the conversation store's caching/truncation
// options.
type ConversationConfig struct {
	EnableCaching      bool `yaml:"enable_caching"`
	MaxHistoryMessages *int `yaml:"max_history_messages"`
}

// SummarizationConfig covers the session summarizer.
type SummarizationConfig struct {
	MinMessagesForSummary int     `yaml:"min_messages_for_summary"`
	ReconcatGuardRatio    float64 `yaml:"reconcat_guard_ratio"`
}

// StateProviderConfig selects and configures the pluggable State Provider.
type StateProviderConfig struct {
	Kind    string `yaml:"kind"` // "file" | "memory" | "redis" | "sqlite"
	BaseDir string `yaml:"base_dir"`
	RedisURL string `yaml:"redis_url"`
	SQLitePath string `yaml:"sqlite_path"`
}

// ProviderConfig is one LLM provider's credentials and endpoint.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// BusConfig selects the event bus transport.
type BusConfig struct {
	Kind          string   `yaml:"kind"` // "inproc" | "kafka"
	KafkaBrokers  []string `yaml:"kafka_brokers"`
	KafkaTopic    string   `yaml:"kafka_topic"`
}

// Config is the complete runtime configuration (spec.md §6).
type Config struct {
	Reasoning     ReasoningConfig     `yaml:"reasoning"`
	Connection    ConnectionConfig    `yaml:"connection"`
	Conversation  ConversationConfig  `yaml:"conversation"`
	Summarization SummarizationConfig `yaml:"summarization"`
	StateProvider StateProviderConfig `yaml:"state_provider"`
	Anthropic     ProviderConfig      `yaml:"anthropic"`
	Bus           BusConfig           `yaml:"bus"`
}

// Defaults returns the configuration with every spec.md §6 default set.
func Defaults() Config {
	return Config{
		Reasoning: ReasoningConfig{
			MaxIterations:    3,
			MinQualityDirect: 0.60,
			MinQualityLight:  0.65,
			MinQualityDeep:   0.60,
			MinConfidence:    0.60,
		},
		Connection: ConnectionConfig{
			CheckIntervalSeconds:  30,
			HealthTimeoutSeconds:  5,
			BaseBackoffSeconds:    1,
			CeilingBackoffSeconds: 60,
			JitterMin:             0.8,
			JitterMax:             1.2,
			MaxAttempts:           10,
		},
		Conversation: ConversationConfig{
			EnableCaching: true,
		},
		Summarization: SummarizationConfig{
			MinMessagesForSummary: 6,
			ReconcatGuardRatio:    1.5,
		},
		StateProvider: StateProviderConfig{Kind: "file"},
		Bus:           BusConfig{Kind: "inproc"},
	}
}

// Load layers defaults, an optional YAML file, and environment variables
// (prefix AGENTCORE_, nested keys joined with "_") using viper, matching
// the teacher's layered-load idiom.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("AGENTCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	// Config is tagged with `yaml`, not viper's default `mapstructure`
	// tag, so the decoder has to be told which tag carries the field
	// names.
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" }); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func bindDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("reasoning.max_iterations", cfg.Reasoning.MaxIterations)
	v.SetDefault("reasoning.min_quality_direct", cfg.Reasoning.MinQualityDirect)
	v.SetDefault("reasoning.min_quality_light", cfg.Reasoning.MinQualityLight)
	v.SetDefault("reasoning.min_quality_deep", cfg.Reasoning.MinQualityDeep)
	v.SetDefault("reasoning.min_confidence", cfg.Reasoning.MinConfidence)
	v.SetDefault("connection.check_interval", cfg.Connection.CheckIntervalSeconds)
	v.SetDefault("connection.health_timeout", cfg.Connection.HealthTimeoutSeconds)
	v.SetDefault("connection.base_backoff", cfg.Connection.BaseBackoffSeconds)
	v.SetDefault("connection.ceiling_backoff", cfg.Connection.CeilingBackoffSeconds)
	v.SetDefault("connection.jitter_min", cfg.Connection.JitterMin)
	v.SetDefault("connection.jitter_max", cfg.Connection.JitterMax)
	v.SetDefault("connection.max_attempts", cfg.Connection.MaxAttempts)
	v.SetDefault("conversation.enable_caching", cfg.Conversation.EnableCaching)
	v.SetDefault("summarization.min_messages_for_summary", cfg.Summarization.MinMessagesForSummary)
	v.SetDefault("summarization.reconcat_guard_ratio", cfg.Summarization.ReconcatGuardRatio)
	v.SetDefault("state_provider.kind", cfg.StateProvider.Kind)
	v.SetDefault("bus.kind", cfg.Bus.Kind)
}

// CheckInterval returns the health-check interval as a time.Duration.
func (c ConnectionConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSeconds) * time.Second
}

// HealthTimeout returns the per-probe timeout as a time.Duration.
func (c ConnectionConfig) HealthTimeout() time.Duration {
	return time.Duration(c.HealthTimeoutSeconds) * time.Second
}
