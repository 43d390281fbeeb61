// Package config holds the immutable configuration bundle threaded through
// the engine constructor. Concurrent runs with different configs are safe;
// nothing here is global mutable state.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all leadpilot configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Engine thresholds and retry caps
	Engine EngineConfig `yaml:"engine"`

	// Trait detection keyword groups
	Traits TraitsConfig `yaml:"traits"`

	// Campaign planning mappings
	Planner PlannerConfig `yaml:"planner"`

	// Review policy
	Review ReviewConfig `yaml:"review"`

	// Storage paths
	Storage StorageConfig `yaml:"storage"`

	// Delivery integrations
	Delivery DeliveryConfig `yaml:"delivery"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the text-generation provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // genai, openai, stub
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Timeout     string  `yaml:"timeout"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// EngineConfig configures the orchestrator.
type EngineConfig struct {
	PassThreshold       float64 `yaml:"pass_threshold"`        // Quality gate approval score
	MaxQualityRetries   int     `yaml:"max_quality_retries"`   // Regenerations per step after review failure
	MaxTransportRetries int     `yaml:"max_transport_retries"` // Retries for transport-level generation failures
	MaxConcurrentRuns   int     `yaml:"max_concurrent_runs"`
	GenerationTimeout   string  `yaml:"generation_timeout"`
	DeliveryTimeout     string  `yaml:"delivery_timeout"`
}

// TraitsConfig configures trait detection. An empty Groups list falls back
// to the built-in keyword groups.
type TraitsConfig struct {
	Groups []KeywordGroupConfig `yaml:"groups,omitempty"`
}

// KeywordGroupConfig is one attribute's keyword group.
type KeywordGroupConfig struct {
	Category string   `yaml:"category"` // business_model, technology, industry, seniority, communication_style
	Trait    string   `yaml:"trait"`
	Keywords []string `yaml:"keywords"`
}

// PlannerConfig configures trait-to-sequence mapping. An empty Mappings list
// falls back to the built-in mapping table.
type PlannerConfig struct {
	Mappings []MappingConfig `yaml:"mappings,omitempty"`
}

// MappingConfig maps an attribute combination to a campaign shape.
type MappingConfig struct {
	PrimaryTrait   string   `yaml:"primary_trait"`
	RequiredTraits []string `yaml:"required_traits,omitempty"`
	Sequence       string   `yaml:"sequence"`
	Steps          []string `yaml:"steps"`
	Angle          string   `yaml:"angle"`
	Tone           string   `yaml:"tone"`
	Priority       int      `yaml:"priority"`
}

// ReviewConfig configures the message reviewer.
type ReviewConfig struct {
	// Denylist of generic/salesy phrases that fail brand compliance.
	Denylist []string `yaml:"denylist,omitempty"`
}

// StorageConfig configures the sqlite stores.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// DeliveryConfig configures the email queue and CRM write layer.
type DeliveryConfig struct {
	AMQPURL    string `yaml:"amqp_url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	CRMBaseURL string `yaml:"crm_base_url"`
	CRMAPIKey  string `yaml:"crm_api_key"`
	CRMTimeout string `yaml:"crm_timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "leadpilot",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider:    "genai",
			Model:       "gemini-2.5-flash",
			Timeout:     "120s",
			MaxTokens:   1024,
			Temperature: 0.7,
		},

		Engine: EngineConfig{
			PassThreshold:       80.0,
			MaxQualityRetries:   2,
			MaxTransportRetries: 3,
			MaxConcurrentRuns:   8,
			GenerationTimeout:   "120s",
			DeliveryTimeout:     "30s",
		},

		Storage: StorageConfig{
			DatabasePath: ".leadpilot/leadpilot.db",
		},

		Delivery: DeliveryConfig{
			Exchange:   "outreach",
			RoutingKey: "outreach.email",
			CRMTimeout: "30s",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads config from a YAML file, applies defaults for zero values, and
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
// API keys are the usual case: they belong in the environment, not the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LEADPILOT_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if c.LLM.APIKey == "" {
		if v := os.Getenv("GEMINI_API_KEY"); v != "" {
			c.LLM.APIKey = v
			if c.LLM.Provider == "" {
				c.LLM.Provider = "genai"
			}
		}
	}
	if c.LLM.APIKey == "" {
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			c.LLM.APIKey = v
			if c.LLM.Provider == "" {
				c.LLM.Provider = "openai"
			}
		}
	}
	if v := os.Getenv("LEADPILOT_AMQP_URL"); v != "" {
		c.Delivery.AMQPURL = v
	}
	if v := os.Getenv("LEADPILOT_CRM_API_KEY"); v != "" {
		c.Delivery.CRMAPIKey = v
	}
	if v := os.Getenv("LEADPILOT_DB_PATH"); v != "" {
		c.Storage.DatabasePath = v
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Engine.PassThreshold < 0 || c.Engine.PassThreshold > 100 {
		return fmt.Errorf("engine.pass_threshold must be in [0,100], got %v", c.Engine.PassThreshold)
	}
	if c.Engine.MaxQualityRetries < 0 {
		return fmt.Errorf("engine.max_quality_retries must be >= 0, got %d", c.Engine.MaxQualityRetries)
	}
	if c.Engine.MaxTransportRetries < 0 {
		return fmt.Errorf("engine.max_transport_retries must be >= 0, got %d", c.Engine.MaxTransportRetries)
	}
	if c.Engine.MaxConcurrentRuns < 1 {
		return fmt.Errorf("engine.max_concurrent_runs must be >= 1, got %d", c.Engine.MaxConcurrentRuns)
	}
	if _, err := c.GenerationTimeout(); err != nil {
		return fmt.Errorf("engine.generation_timeout: %w", err)
	}
	if _, err := c.DeliveryTimeout(); err != nil {
		return fmt.Errorf("engine.delivery_timeout: %w", err)
	}
	return nil
}

// GenerationTimeout parses the generation timeout duration.
func (c *Config) GenerationTimeout() (time.Duration, error) {
	return parseDuration(c.Engine.GenerationTimeout, 120*time.Second)
}

// DeliveryTimeout parses the delivery timeout duration.
func (c *Config) DeliveryTimeout() (time.Duration, error) {
	return parseDuration(c.Engine.DeliveryTimeout, 30*time.Second)
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}
