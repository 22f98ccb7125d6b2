// Package config provides configuration loading and management for Capspec.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/capspec/diag"
)

// Config represents the complete Capspec configuration
type Config struct {
	Documents  DocumentsConfig  `yaml:"documents"`
	Validation ValidationConfig `yaml:"validation"`
	NATS       NATSConfig       `yaml:"nats"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// DocumentsConfig configures where capability documents are read from
type DocumentsConfig struct {
	// Paths lists document glob patterns (supports ** recursion)
	Paths []string `yaml:"paths"`
	// WatchDebounce is how long to wait for more changes before re-validating
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// ValidationConfig configures validation policy
type ValidationConfig struct {
	// AsymmetrySeverity is the severity for one-sided symmetric edges
	// ("fatal" or "warning")
	AsymmetrySeverity string `yaml:"asymmetry_severity"`
	// DetectDuplicates enables advisory duplicate-relation findings
	DetectDuplicates bool `yaml:"detect_duplicates"`
	// Parallelism bounds concurrent workflow validation (1 = sequential)
	Parallelism int `yaml:"parallelism"`
}

// NATSConfig configures the NATS connection for serve mode
type NATSConfig struct {
	// URL is the NATS server URL
	URL string `yaml:"url"`
	// Subject is the request subject the validator listens on
	Subject string `yaml:"subject"`
}

// MetricsConfig configures the prometheus metrics endpoint
type MetricsConfig struct {
	// Addr is the listen address for /metrics (empty = disabled)
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Documents: DocumentsConfig{
			Paths:         []string{"./capabilities/**/*.yaml", "./workflows/**/*.yaml"},
			WatchDebounce: 500 * time.Millisecond,
		},
		Validation: ValidationConfig{
			AsymmetrySeverity: diag.SeverityFatal.String(),
			DetectDuplicates:  false,
			Parallelism:       1,
		},
		NATS: NATSConfig{
			URL:     "nats://localhost:4222",
			Subject: "capspec.validate",
		},
		Metrics: MetricsConfig{
			Addr: ":9095",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if len(c.Documents.Paths) == 0 {
		return fmt.Errorf("documents.paths is required")
	}
	if !diag.Severity(c.Validation.AsymmetrySeverity).IsValid() {
		return fmt.Errorf("validation.asymmetry_severity must be a known severity, got %q", c.Validation.AsymmetrySeverity)
	}
	if c.Validation.Parallelism < 1 {
		return fmt.Errorf("validation.parallelism must be at least 1")
	}
	if c.NATS.Subject == "" {
		return fmt.Errorf("nats.subject is required")
	}
	return nil
}

// AsymmetrySeverity returns the configured severity as a typed value
func (c *Config) AsymmetrySeverity() diag.Severity {
	return diag.Severity(c.Validation.AsymmetrySeverity)
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Documents
	if len(other.Documents.Paths) > 0 {
		c.Documents.Paths = other.Documents.Paths
	}
	if other.Documents.WatchDebounce != 0 {
		c.Documents.WatchDebounce = other.Documents.WatchDebounce
	}

	// Validation
	if other.Validation.AsymmetrySeverity != "" {
		c.Validation.AsymmetrySeverity = other.Validation.AsymmetrySeverity
	}
	if other.Validation.DetectDuplicates {
		c.Validation.DetectDuplicates = true
	}
	if other.Validation.Parallelism != 0 {
		c.Validation.Parallelism = other.Validation.Parallelism
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.Subject != "" {
		c.NATS.Subject = other.NATS.Subject
	}

	// Metrics
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}
}
