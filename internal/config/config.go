// ABOUTME: Configuration loading and parsing for bootwatch
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete bootwatch configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Progress  ProgressConfig  `yaml:"progress" toml:"progress"`
	Lifecycle LifecycleConfig `yaml:"lifecycle" toml:"lifecycle"`
	Demo      DemoConfig      `yaml:"demo" toml:"demo"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
}

// ProgressConfig holds startup progress endpoint configuration
type ProgressConfig struct {
	// StreamPath is the Server-Sent Events endpoint for progress viewers
	StreamPath string `yaml:"stream_path" toml:"stream_path"`

	// BlockedPaths answer 500 until startup completes. Entries ending in "/"
	// block a whole subtree.
	BlockedPaths []string `yaml:"blocked_paths" toml:"blocked_paths"`

	// Title and Message (markdown) customize the placeholder page
	Title   string `yaml:"title" toml:"title"`
	Message string `yaml:"message" toml:"message"`

	WriteTimeout    time.Duration `yaml:"-" toml:"-"`
	WriteTimeoutRaw string        `yaml:"write_timeout" toml:"write_timeout"`
}

// LifecycleConfig holds component container configuration
type LifecycleConfig struct {
	// Workers bounds concurrent component initialization (0 = unbounded)
	Workers int `yaml:"workers" toml:"workers"`
}

// DemoConfig configures the built-in slow components
type DemoConfig struct {
	Enabled       bool    `yaml:"enabled" toml:"enabled"`
	Prefix        string  `yaml:"prefix" toml:"prefix"`
	First         int     `yaml:"first" toml:"first"`
	Count         int     `yaml:"count" toml:"count"`
	RatePerSecond float64 `yaml:"rate_per_second" toml:"rate_per_second"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr: "127.0.0.1:8080",
		},
		Progress: ProgressConfig{
			StreamPath:      "/init.stream",
			BlockedPaths:    []string{"/health", "/info"},
			WriteTimeout:    10 * time.Second,
			WriteTimeoutRaw: "10s",
		},
		Lifecycle: LifecycleConfig{
			Workers: 4,
		},
		Demo: DemoConfig{
			Enabled:       true,
			Prefix:        "slow-",
			First:         100,
			Count:         10,
			RatePerSecond: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
// Fields absent from the file keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but returns Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// Server address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if err := validateRoutePath("progress.stream_path", c.Progress.StreamPath); err != nil {
		return err
	}
	for _, p := range c.Progress.BlockedPaths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("progress.blocked_paths entry must start with '/', got %q", p)
		}
		if p == c.Progress.StreamPath {
			return fmt.Errorf("progress.blocked_paths must not contain the stream path %q", p)
		}
	}
	if c.Progress.WriteTimeout <= 0 {
		return fmt.Errorf("progress.write_timeout must be positive")
	}

	if c.Lifecycle.Workers < 0 {
		return fmt.Errorf("lifecycle.workers must not be negative")
	}

	if c.Demo.Enabled {
		if c.Demo.Count < 0 {
			return fmt.Errorf("demo.count must not be negative")
		}
		if c.Demo.RatePerSecond < 0 {
			return fmt.Errorf("demo.rate_per_second must not be negative")
		}
	}

	if c.Metrics.Enabled {
		if err := validateRoutePath("metrics.path", c.Metrics.Path); err != nil {
			return err
		}
		if c.Metrics.Path == c.Progress.StreamPath {
			return fmt.Errorf("metrics.path conflicts with progress.stream_path")
		}
	}

	return nil
}

// validateRoutePath checks that p can be registered on the HTTP mux as a
// literal path: it must start with '/' and contain no whitespace or pattern
// wildcards.
func validateRoutePath(key, p string) error {
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("%s must start with '/', got %q", key, p)
	}
	if strings.ContainsAny(p, " \t\r\n{}") {
		return fmt.Errorf("%s must not contain whitespace or braces, got %q", key, p)
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Progress.WriteTimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Progress.WriteTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing write_timeout %q: %w", cfg.Progress.WriteTimeoutRaw, err)
		}
		cfg.Progress.WriteTimeout = d
	}
	return nil
}
