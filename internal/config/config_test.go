// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML/TOML loading, defaults, env var expansion, durations and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "0.0.0.0:9000"

progress:
  stream_path: "/startup/events"
  blocked_paths:
    - "/health"
    - "/info"
    - "/actuator/"
  write_timeout: "3s"
  title: "Booting shop"
  message: "Hold on"

lifecycle:
  workers: 8

demo:
  enabled: true
  prefix: "bean-"
  first: 1
  count: 25
  rate_per_second: 5

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  path: "/prom"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:9000" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:9000")
	}
	if cfg.Progress.StreamPath != "/startup/events" {
		t.Errorf("Progress.StreamPath = %q, want %q", cfg.Progress.StreamPath, "/startup/events")
	}
	if got := strings.Join(cfg.Progress.BlockedPaths, ","); got != "/health,/info,/actuator/" {
		t.Errorf("Progress.BlockedPaths = %q", got)
	}
	if cfg.Progress.WriteTimeout != 3*time.Second {
		t.Errorf("Progress.WriteTimeout = %v, want %v", cfg.Progress.WriteTimeout, 3*time.Second)
	}
	if cfg.Progress.Title != "Booting shop" {
		t.Errorf("Progress.Title = %q, want %q", cfg.Progress.Title, "Booting shop")
	}
	if cfg.Lifecycle.Workers != 8 {
		t.Errorf("Lifecycle.Workers = %d, want 8", cfg.Lifecycle.Workers)
	}
	if cfg.Demo.Prefix != "bean-" || cfg.Demo.First != 1 || cfg.Demo.Count != 25 {
		t.Errorf("Demo = %+v", cfg.Demo)
	}
	if cfg.Demo.RatePerSecond != 5 {
		t.Errorf("Demo.RatePerSecond = %v, want 5", cfg.Demo.RatePerSecond)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/prom" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[server]
http_addr = "127.0.0.1:7000"

[progress]
stream_path = "/init.stream"
blocked_paths = ["/health"]
write_timeout = "250ms"

[demo]
enabled = false
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:7000" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:7000")
	}
	if len(cfg.Progress.BlockedPaths) != 1 || cfg.Progress.BlockedPaths[0] != "/health" {
		t.Errorf("Progress.BlockedPaths = %v, want [/health]", cfg.Progress.BlockedPaths)
	}
	if cfg.Progress.WriteTimeout != 250*time.Millisecond {
		t.Errorf("Progress.WriteTimeout = %v, want 250ms", cfg.Progress.WriteTimeout)
	}
	if cfg.Demo.Enabled {
		t.Error("Demo.Enabled = true, want false")
	}
	// Untouched sections keep defaults
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want default /metrics", cfg.Metrics.Path)
	}
}

func TestLoad_DefaultsForMissingSections(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: ":8081"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	def := Default()
	if cfg.Progress.StreamPath != def.Progress.StreamPath {
		t.Errorf("Progress.StreamPath = %q, want %q", cfg.Progress.StreamPath, def.Progress.StreamPath)
	}
	if len(cfg.Progress.BlockedPaths) != 2 {
		t.Errorf("Progress.BlockedPaths = %v, want defaults", cfg.Progress.BlockedPaths)
	}
	if cfg.Progress.WriteTimeout != 10*time.Second {
		t.Errorf("Progress.WriteTimeout = %v, want 10s", cfg.Progress.WriteTimeout)
	}
	if cfg.Demo.Count != 10 || cfg.Demo.First != 100 || cfg.Demo.Prefix != "slow-" {
		t.Errorf("Demo = %+v, want defaults", cfg.Demo)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_BOOTWATCH_ADDR", "10.0.0.1:8080")
	t.Setenv("TEST_BOOTWATCH_TITLE", "From env")

	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "${TEST_BOOTWATCH_ADDR}"
progress:
  title: "${TEST_BOOTWATCH_TITLE}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "10.0.0.1:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "10.0.0.1:8080")
	}
	if cfg.Progress.Title != "From env" {
		t.Errorf("Progress.Title = %q, want %q", cfg.Progress.Title, "From env")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Server.HTTPAddr != Default().Server.HTTPAddr {
		t.Errorf("Server.HTTPAddr = %q, want default", cfg.Server.HTTPAddr)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: [unterminated
`)

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
progress:
  write_timeout: "soon"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "write_timeout") {
		t.Errorf("error = %v, want mention of write_timeout", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing http addr",
			mutate:  func(c *Config) { c.Server.HTTPAddr = "" },
			wantErr: "server.http_addr",
		},
		{
			name: "tailscale without hostname",
			mutate: func(c *Config) {
				c.Tailscale.Enabled = true
			},
			wantErr: "tailscale.hostname",
		},
		{
			name: "tailscale replaces http addr",
			mutate: func(c *Config) {
				c.Server.HTTPAddr = ""
				c.Tailscale.Enabled = true
				c.Tailscale.Hostname = "bootwatch"
			},
		},
		{
			name:    "relative stream path",
			mutate:  func(c *Config) { c.Progress.StreamPath = "init.stream" },
			wantErr: "progress.stream_path",
		},
		{
			name:    "blocked path equals stream path",
			mutate:  func(c *Config) { c.Progress.BlockedPaths = []string{"/init.stream"} },
			wantErr: "must not contain the stream path",
		},
		{
			name:    "relative blocked path",
			mutate:  func(c *Config) { c.Progress.BlockedPaths = []string{"health"} },
			wantErr: "progress.blocked_paths",
		},
		{
			name:    "zero write timeout",
			mutate:  func(c *Config) { c.Progress.WriteTimeout = 0 },
			wantErr: "write_timeout",
		},
		{
			name:    "negative workers",
			mutate:  func(c *Config) { c.Lifecycle.Workers = -1 },
			wantErr: "lifecycle.workers",
		},
		{
			name:    "negative demo rate",
			mutate:  func(c *Config) { c.Demo.RatePerSecond = -1 },
			wantErr: "demo.rate_per_second",
		},
		{
			name:    "stream path with space",
			mutate:  func(c *Config) { c.Progress.StreamPath = "/init stream" },
			wantErr: "progress.stream_path must not contain whitespace",
		},
		{
			name:    "stream path with wildcard",
			mutate:  func(c *Config) { c.Progress.StreamPath = "/init/{name" },
			wantErr: "progress.stream_path must not contain whitespace or braces",
		},
		{
			name:    "metrics path with wildcard",
			mutate:  func(c *Config) { c.Metrics.Path = "/metrics/{kind}" },
			wantErr: "metrics.path must not contain",
		},
		{
			name: "invalid metrics path ignored when disabled",
			mutate: func(c *Config) {
				c.Metrics.Enabled = false
				c.Metrics.Path = "/metrics {x"
			},
		},
		{
			name:    "metrics on stream path",
			mutate:  func(c *Config) { c.Metrics.Path = "/init.stream" },
			wantErr: "metrics.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR_ONE", "value1")
	t.Setenv("TEST_VAR_TWO", "value2")

	tests := []struct {
		input string
		want  string
	}{
		{"no vars here", "no vars here"},
		{"${TEST_VAR_ONE}", "value1"},
		{"prefix-${TEST_VAR_ONE}-suffix", "prefix-value1-suffix"},
		{"${TEST_VAR_ONE} and ${TEST_VAR_TWO}", "value1 and value2"},
		{"${UNSET_BOOTWATCH_VAR}", ""},
	}

	for _, tt := range tests {
		if got := expandEnvVars(tt.input); got != tt.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
