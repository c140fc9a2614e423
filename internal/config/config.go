package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrInvalidBatchSize is returned by Validate when batch_size is not positive.
var ErrInvalidBatchSize = errors.New("batch size must be at least 1")

// Config holds unmerge configuration.
type Config struct {
	// Entries processed concurrently per batch.
	BatchSize int `yaml:"batch_size"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BatchSize: runtime.NumCPU(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
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

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("UNMERGE_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("UNMERGE_BATCH_SIZE: %w", err)
		}
		c.BatchSize = n
	}
	if v := os.Getenv("UNMERGE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("UNMERGE_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	return nil
}

// ValidLevels lists the accepted log levels.
var ValidLevels = []string{"debug", "info", "warn", "error"}

// ValidFormats lists the accepted log formats.
var ValidFormats = []string{"json", "text"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("%w, got %d", ErrInvalidBatchSize, c.BatchSize)
	}
	if !contains(ValidLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLevels)
	}
	if !contains(ValidFormats, c.Logging.Format) {
		return fmt.Errorf("invalid log format: %s (valid: %v)", c.Logging.Format, ValidFormats)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
