// Copyright 2026 The Mycroft GUI Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "MYCROFT_GUI_CONFIG"

// Duration is a time.Duration that unmarshals from YAML strings like
// "1s" or "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"1s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the client configuration.
type Config struct {
	// Backend locates the message bus.
	Backend BackendConfig `yaml:"backend"`

	// Log configures diagnostics output.
	Log LogConfig `yaml:"log"`
}

// BackendConfig locates the backend message bus.
type BackendConfig struct {
	// Host is the backend address. Default: 0.0.0.0, the upstream
	// client's historical default for a same-machine backend.
	Host string `yaml:"host"`

	// Port is the primary channel port. Default: 8181.
	Port int `yaml:"port"`

	// Path is the primary channel endpoint path. Default: /core.
	Path string `yaml:"path"`

	// ReconnectInterval is the fixed retry period for both channels.
	// Default: 1s.
	ReconnectInterval Duration `yaml:"reconnect_interval"`
}

// LogConfig configures diagnostics output.
type LogConfig struct {
	// Level is the minimum severity: debug, info, warn, or error.
	// Default: info.
	Level string `yaml:"level"`

	// File is an optional log destination. Empty means stderr.
	File string `yaml:"file"`
}

// Default returns the configuration for a backend on the local
// machine. Unlike the usual doctrine of a mandatory config file, the
// defaults here are a complete working configuration.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Host:              "0.0.0.0",
			Port:              8181,
			Path:              "/core",
			ReconnectInterval: Duration(time.Second),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the MYCROFT_GUI_CONFIG environment
// variable, or returns Default when it is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path. The file is
// the single source of truth: environment variables never override
// its values. Fields absent from the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Backend.Host == "" {
		return fmt.Errorf("backend.host is required")
	}
	if c.Backend.Port <= 0 || c.Backend.Port > 65535 {
		return fmt.Errorf("backend.port %d outside [1, 65535]", c.Backend.Port)
	}
	if c.Backend.ReconnectInterval <= 0 {
		return fmt.Errorf("backend.reconnect_interval must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// CoreURL builds the primary channel address.
func (c *Config) CoreURL() string {
	path := c.Backend.Path
	if path == "" {
		path = "/core"
	}
	return fmt.Sprintf("ws://%s:%d%s", c.Backend.Host, c.Backend.Port, path)
}

// SlogLevel maps the configured level name to a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch c.Log.Level {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
}
