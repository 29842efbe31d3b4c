// Package config provides configuration loading and management for rtdvh.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"rtdvh/pkg/dvh"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters for the parallel DVH engine
	Processing struct {
		// Workers is the number of ROIs computed concurrently
		Workers int `yaml:"workers"`

		// TaskTimeout bounds the computation of a single ROI; 0 disables it
		TaskTimeout time.Duration `yaml:"taskTimeout"`

		// DoseLimit caps the histogram dose range in cGy; 0 means no cap
		DoseLimit float64 `yaml:"doseLimit"`

		// OnError is the failure policy, "abort" or "skip"
		OnError string `yaml:"onError"`
	} `yaml:"processing"`

	// Export parameters
	Export struct {
		// OutputDir is prepended verbatim to the CSV name, so it should end
		// with a path separator
		OutputDir string `yaml:"outputDir"`

		// CSVName is the report file name without extension. An empty name
		// defaults to "DVH_<patient id>".
		CSVName string `yaml:"csvName"`
	} `yaml:"export"`

	// Logging parameters
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.Workers = runtime.NumCPU()
	cfg.Processing.TaskTimeout = 5 * time.Minute
	cfg.Processing.DoseLimit = 0
	cfg.Processing.OnError = string(dvh.Abort)

	cfg.Export.OutputDir = "." + string(os.PathSeparator)
	cfg.Export.CSVName = ""

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks that all configuration values are usable
func (c *Config) Validate() error {
	if c.Processing.Workers < 0 {
		return fmt.Errorf("processing.workers must not be negative, got %d", c.Processing.Workers)
	}
	if c.Processing.TaskTimeout < 0 {
		return fmt.Errorf("processing.taskTimeout must not be negative, got %s", c.Processing.TaskTimeout)
	}
	if c.Processing.DoseLimit < 0 {
		return fmt.Errorf("processing.doseLimit must not be negative, got %g", c.Processing.DoseLimit)
	}
	if _, err := dvh.ParseFailurePolicy(c.Processing.OnError); err != nil {
		return fmt.Errorf("processing.onError: %w", err)
	}
	return nil
}

// EngineOptions converts the processing section into engine options.
func (c *Config) EngineOptions() (dvh.Options, error) {
	policy, err := dvh.ParseFailurePolicy(c.Processing.OnError)
	if err != nil {
		return dvh.Options{}, err
	}
	return dvh.Options{
		Workers:     c.Processing.Workers,
		TaskTimeout: c.Processing.TaskTimeout,
		DoseLimit:   c.Processing.DoseLimit,
		OnError:     policy,
	}, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
