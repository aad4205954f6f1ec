// Package config loads and applies the Isometry core's YAML configuration:
// a DefaultConfig(), a Load() that falls back to defaults when no file
// exists, a Save(), and env-var overrides applied last.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"isometry/internal/logging"
)

// Config holds all Isometry core configuration.
type Config struct {
	Storage      StorageConfig      `yaml:"storage"`
	Import       ImportConfig       `yaml:"import"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// StorageConfig configures the relational writer's SQLite connection.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// ImportConfig configures the coordinator's batch behavior.
type ImportConfig struct {
	Transactional bool `yaml:"transactional"`
}

// SubscriptionConfig mirrors internal/subscribe.Config's fields, supplying
// the defaults the live data subscription layer starts from.
type SubscriptionConfig struct {
	PollIntervalMs int `yaml:"poll_interval_ms"`
	ThrottleMs     int `yaml:"throttle_ms"`
	MaxRetries     int `yaml:"max_retries"`
	BackoffBase    int `yaml:"backoff_base"`
}

// LoggingConfig configures the zap-backed logging package.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	JSONFormat bool   `yaml:"json_format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DBPath: "data/isometry.db",
		},
		Import: ImportConfig{
			Transactional: true,
		},
		Subscription: SubscriptionConfig{
			PollIntervalMs: 1000,
			ThrottleMs:     1000,
			MaxRetries:     5,
			BackoffBase:    2,
		},
		Logging: LoggingConfig{
			Level:      "info",
			JSONFormat: false,
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults if
// the file does not exist, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	logging.Get(logging.CategoryConfig).Debug("loading config from: %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Get(logging.CategoryConfig).Info("config file not found, using defaults: %s", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	logging.Get(logging.CategoryConfig).Info("config loaded: dbPath=%s level=%s", cfg.Storage.DBPath, cfg.Logging.Level)
	return cfg, nil
}

// Save writes configuration to a YAML file, creating its directory if
// necessary.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies the ISOMETRY_* environment variable overrides,
// applied after file load so the environment always wins.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ISOMETRY_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("ISOMETRY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ISOMETRY_LOG_JSON"); v != "" {
		c.Logging.JSONFormat = v == "1" || v == "true"
	}
	if v := os.Getenv("ISOMETRY_POLL_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Subscription.PollIntervalMs = n
		}
	}
	if v := os.Getenv("ISOMETRY_THROTTLE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Subscription.ThrottleMs = n
		}
	}
	if v := os.Getenv("ISOMETRY_IMPORT_TRANSACTIONAL"); v != "" {
		c.Import.Transactional = v == "1" || v == "true"
	}
}

// PollInterval returns the subscription poll interval as a time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Subscription.PollIntervalMs) * time.Millisecond
}
