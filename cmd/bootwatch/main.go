// ABOUTME: Entry point for the bootwatch server
// ABOUTME: Serves startup progress while components initialize, plus init/health/progress helpers

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/2389/bootwatch/internal/config"
	"github.com/2389/bootwatch/internal/server"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _                 _                    _       _
| |__   ___   ___ | |___      ____ _ __| |_ ___| |__
| '_ \ / _ \ / _ \| __\ \ /\ / / _' |__  _/ __| '_ \
| |_) | (_) | (_) | |_ \ V  V / (_| |  | || (__| | | |
|_.__/ \___/ \___/ \__| \_/\_/ \__,_|   \__\___|_| |_|
`

// getConfigPath returns the path to the bootwatch config file.
// Priority: BOOTWATCH_CONFIG env var > XDG_CONFIG_HOME/bootwatch/config.yaml > ~/.config/bootwatch/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("BOOTWATCH_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "bootwatch", "config.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: bootwatch <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve      Start the server")
		fmt.Println("  init       Create a new config file interactively")
		fmt.Println("  health     Check server health")
		fmt.Println("  progress   Follow startup progress of a running server")
		fmt.Println("  version    Print the version")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "progress":
		err = runProgress(ctx, os.Stdout)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration, falling back to defaults when no file exists
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Progress:  %s\n", cfg.Progress.StreamPath)
	if cfg.Metrics.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Metrics:   %s\n", cfg.Metrics.Path)
	}
	if cfg.Demo.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Demo:      ")
		yellow.Printf("%d components at %.0f/s\n", cfg.Demo.Count, cfg.Demo.RatePerSecond)
	}

	// Tailscale status
	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	fmt.Println()

	logger.Info("starting bootwatch",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"stream_path", cfg.Progress.StreamPath,
	)

	server.Version = version
	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.LoadOrDefault(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := serverBaseURL(cfg) + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// runProgress follows the progress stream of a running server and prints
// each component as it starts.
func runProgress(ctx context.Context, out io.Writer) error {
	cfg, err := config.LoadOrDefault(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return followProgress(ctx, serverBaseURL(cfg)+cfg.Progress.StreamPath, out)
}

// serverBaseURL returns the base URL the client commands dial. With
// tailscale enabled the server only listens on the tailnet, on port 80 of
// its node name, so http_addr is not reachable.
func serverBaseURL(cfg *config.Config) string {
	if cfg.Tailscale.Enabled {
		return "http://" + cfg.Tailscale.Hostname
	}
	return "http://" + cfg.Server.HTTPAddr
}

func followProgress(ctx context.Context, url string, out io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to progress stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("progress stream: status %d", resp.StatusCode)
	}

	green := color.New(color.FgGreen)
	count := 0
	var event string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:") && event == "":
			count++
			green.Fprint(out, "  ✓ ")
			fmt.Fprintln(out, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case line == "" && event == "complete":
			fmt.Fprintf(out, "started (%d components)\n", count)
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading progress stream: %w", err)
	}
	return fmt.Errorf("progress stream ended before startup completed")
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("bootwatch configuration setup")
	fmt.Println("=============================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", getConfigPath())

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	cfg := config.Default()

	fmt.Println("\n--- Server Configuration ---")
	cfg.Server.HTTPAddr = prompt(reader, "HTTP address", cfg.Server.HTTPAddr)

	fmt.Println("\n--- Startup Progress ---")
	cfg.Progress.StreamPath = prompt(reader, "Progress stream path", cfg.Progress.StreamPath)
	blocked := prompt(reader, "Paths blocked during startup (comma separated)", strings.Join(cfg.Progress.BlockedPaths, ","))
	cfg.Progress.BlockedPaths = splitList(blocked)
	cfg.Progress.Title = prompt(reader, "Placeholder page title", "")

	fmt.Println("\n--- Tailscale Configuration ---")
	cfg.Tailscale.Enabled = isYes(prompt(reader, "Enable Tailscale?", "no"))
	if cfg.Tailscale.Enabled {
		cfg.Tailscale.Hostname = prompt(reader, "Tailscale hostname", "bootwatch")
		cfg.Tailscale.AuthKey = prompt(reader, "Tailscale auth key (leave empty to use TS_AUTHKEY)", "")
		cfg.Tailscale.Ephemeral = isYes(prompt(reader, "Ephemeral node?", "no"))
	}

	fmt.Println("\n--- Logging Configuration ---")
	cfg.Logging.Level = prompt(reader, "Log level (debug/info/warn/error)", cfg.Logging.Level)
	cfg.Logging.Format = prompt(reader, "Log format (text/json)", cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	header := "# bootwatch configuration\n# Generated by bootwatch init\n\n"
	if err := os.WriteFile(outputFile, append([]byte(header), data...), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  bootwatch serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func isYes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "y"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
