// Package config loads the bits tool configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/geal-ai/bitspacket"
)

// Config holds all bits configuration.
type Config struct {
	Decoder DecoderConfig `yaml:"decoder"`
	Batch   BatchConfig   `yaml:"batch"`
	Store   StoreConfig   `yaml:"store"`
	Log     LogConfig     `yaml:"log"`
}

// DecoderConfig bounds what the decoder accepts.
type DecoderConfig struct {
	MaxDepth      int `yaml:"max_depth"`
	MaxInputBytes int `yaml:"max_input_bytes"` // 0 = unlimited
}

// BatchConfig configures concurrent decoding of many transmissions.
type BatchConfig struct {
	Workers int `yaml:"workers"`
}

// StoreConfig configures the decode history database.
type StoreConfig struct {
	Path string `yaml:"path"` // empty disables recording
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Decoder: DecoderConfig{
			MaxDepth:      bitspacket.DefaultMaxDepth,
			MaxInputBytes: 1 << 20,
		},
		Batch: BatchConfig{
			Workers: 8,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. Fields missing from the file
// keep their defaults; an empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
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

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
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
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("BITS_DB"); path != "" {
		c.Store.Path = path
	}
	if level := os.Getenv("BITS_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// Validate checks that every value is usable.
func (c *Config) Validate() error {
	if c.Decoder.MaxDepth < 1 {
		return fmt.Errorf("decoder.max_depth must be positive, got %d", c.Decoder.MaxDepth)
	}
	if c.Decoder.MaxInputBytes < 0 {
		return fmt.Errorf("decoder.max_input_bytes must not be negative, got %d", c.Decoder.MaxInputBytes)
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be positive, got %d", c.Batch.Workers)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	return nil
}

// DecoderOptions returns the decoder options this configuration implies.
func (c *Config) DecoderOptions() []bitspacket.Option {
	return []bitspacket.Option{
		bitspacket.WithMaxDepth(c.Decoder.MaxDepth),
		bitspacket.WithMaxBytes(c.Decoder.MaxInputBytes),
	}
}
