// Package config provides configuration loading for the extraction
// pipeline. Supports YAML files, environment variables, and
// programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the extraction pipeline.
type Config struct {
	Extraction    ExtractionConfig    `yaml:"extraction"`
	AI            AIConfig            `yaml:"ai"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ExtractionConfig holds pipeline behavior settings.
type ExtractionConfig struct {
	// MaxRetries bounds re-dispatches of a segment after a transient
	// service error. The first attempt is not counted.
	MaxRetries int `yaml:"max_retries"`

	// ConcurrencyLimit bounds the number of segments dispatched at
	// once, protecting the AI service's rate limit.
	ConcurrencyLimit int `yaml:"concurrency_limit"`

	// TimeoutSeconds bounds a whole run. Zero means no deadline.
	TimeoutSeconds float64 `yaml:"timeout_seconds"`

	SkipTables  bool `yaml:"skip_tables"`
	SkipImages  bool `yaml:"skip_images"`
	OCRFallback bool `yaml:"ocr_fallback"`
}

// AIConfig holds external AI service settings.
type AIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`

	// RequestTimeoutSeconds bounds a single inference call.
	RequestTimeoutSeconds float64 `yaml:"request_timeout_seconds"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment
// overrides. An empty path loads defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Extraction: ExtractionConfig{
			MaxRetries:       2,
			ConcurrencyLimit: 4,
			TimeoutSeconds:   600,
			OCRFallback:      true,
		},
		AI: AIConfig{
			BaseURL:               "https://openrouter.ai/api/v1/chat/completions",
			Model:                 "x-ai/grok-4.1-fast:free",
			RequestTimeoutSeconds: 120,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Extraction.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative: %d", c.Extraction.MaxRetries)
	}

	if c.Extraction.ConcurrencyLimit < 1 {
		return fmt.Errorf("concurrency_limit must be at least 1: %d", c.Extraction.ConcurrencyLimit)
	}

	if c.Extraction.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative: %v", c.Extraction.TimeoutSeconds)
	}

	if c.AI.BaseURL == "" {
		return fmt.Errorf("ai.base_url must not be empty")
	}

	return nil
}

// Timeout returns the run deadline as a duration. Zero means none.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Extraction.TimeoutSeconds * float64(time.Second))
}

// RequestTimeout returns the per-call deadline for the AI client.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.AI.RequestTimeoutSeconds * float64(time.Second))
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}

	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.AI.Model = v
	}

	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.AI.BaseURL = v
	}

	if v := os.Getenv("DOCSTRUCT_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Extraction.MaxRetries = n
		}
	}

	if v := os.Getenv("DOCSTRUCT_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Extraction.ConcurrencyLimit = n
		}
	}

	if v := os.Getenv("DOCSTRUCT_TIMEOUT_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Extraction.TimeoutSeconds = f
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
