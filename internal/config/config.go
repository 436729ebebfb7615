// Package config loads and validates switchboard configuration.
// Configuration lives in ~/.switchboard/config.yaml and can be overridden
// with environment variables for API credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all switchboard configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Generative-text client configuration
	LLM LLMConfig `yaml:"llm"`

	// Source-control provider (OAuth app + API)
	GitHub GitHubConfig `yaml:"github"`

	// Content-analysis provider (scraping actor)
	Apify ApifyConfig `yaml:"apify"`

	// Market-data provider
	Market MarketConfig `yaml:"market"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	DebugMode  bool            `yaml:"debug_mode"` // Master toggle - false = no logging
	Categories map[string]bool `yaml:"categories"` // Per-category toggles
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "switchboard",
		Version: "0.3.0",

		LLM:    DefaultLLMConfig(),
		GitHub: DefaultGitHubConfig(),
		Apify:  DefaultApifyConfig(),
		Market: DefaultMarketConfig(),

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Dir returns the switchboard home directory (~/.switchboard).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".switchboard"), nil
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides are applied either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. Credentials
// from the environment always win over the config file.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if id := os.Getenv("GITHUB_CLIENT_ID"); id != "" {
		c.GitHub.ClientID = id
	}
	if secret := os.Getenv("GITHUB_CLIENT_SECRET"); secret != "" {
		c.GitHub.ClientSecret = secret
	}
	if token := os.Getenv("APIFY_TOKEN"); token != "" {
		c.Apify.Token = token
	}
	if key := os.Getenv("CMC_API_KEY"); key != "" {
		c.Market.APIKey = key
	}
	if level := os.Getenv("SWITCHBOARD_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
		c.Logging.DebugMode = true
	}
}

// GetLLMTimeout returns the generative-text call timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}
