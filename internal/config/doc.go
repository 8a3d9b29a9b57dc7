// Package config handles configuration loading for bootwatch.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file (chosen by extension) with
// environment variable expansion. Any field the file omits keeps its value
// from Default, and a missing file is not an error for LoadOrDefault.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from BOOTWATCH_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/bootwatch/config.yaml
//  3. ~/.config/bootwatch/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	tailscale:
//	  auth_key: "${TS_AUTHKEY}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	progress:
//	  write_timeout: "10s"
//
// # Configuration Sections
//
// Server and listener:
//
//	server:
//	  http_addr: "127.0.0.1:8080"
//	tailscale:
//	  enabled: false
//	  hostname: "bootwatch"
//
// Startup progress:
//
//	progress:
//	  stream_path: "/init.stream"
//	  blocked_paths: ["/health", "/info"]
//	  write_timeout: "10s"
//	  title: "Starting up"
//	  message: "Markdown shown on the placeholder page"
//
// Components:
//
//	lifecycle:
//	  workers: 4
//	demo:
//	  enabled: true
//	  prefix: "slow-"
//	  first: 100
//	  count: 10
//	  rate_per_second: 10
//
// Logging and metrics:
//
//	logging:
//	  level: "info"    # debug, info, warn, error
//	  format: "text"   # text, json
//	metrics:
//	  enabled: true
//	  path: "/metrics"
package config
