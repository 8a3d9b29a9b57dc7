// ABOUTME: Server orchestrator that wires the progress bus, startup gate and HTTP listener
// ABOUTME: Starts serving before components initialize and shuts everything down in order

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/bootwatch/internal/assets"
	"github.com/2389/bootwatch/internal/config"
	"github.com/2389/bootwatch/internal/gate"
	"github.com/2389/bootwatch/internal/lifecycle"
	"github.com/2389/bootwatch/internal/metrics"
	"github.com/2389/bootwatch/internal/progress"
	"github.com/2389/bootwatch/internal/startup"
	"github.com/2389/bootwatch/internal/stream"
)

// Version is reported by /info. Overridden at build time with -ldflags.
var Version = "dev"

// Server owns the HTTP server and the startup progress machinery around it.
type Server struct {
	config      *config.Config
	bus         *progress.Bus
	hook        *startup.Hook
	container   *lifecycle.Container
	metrics     *metrics.Metrics
	pipeline    *gate.Pipeline
	gate        *gate.Gate
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger
	startedAt   time.Time
}

// New creates a Server with the given configuration. The startup gate is
// registered before New returns, so every request served afterwards sees it
// until the container reports that all components are initialized.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	bus := progress.NewBus(logger)
	s := &Server{
		config:    cfg,
		bus:       bus,
		hook:      startup.NewHook(bus, logger),
		container: lifecycle.NewContainer(cfg.Lifecycle.Workers, logger),
		logger:    logger.With("component", "server"),
		startedAt: time.Now(),
	}

	var recorder gate.Recorder
	if cfg.Metrics.Enabled {
		s.metrics = metrics.New()
		bus.SetRecorder(s.metrics)
		recorder = s.metrics
	}

	if cfg.Demo.Enabled {
		limiter := lifecycle.NewLimiter(cfg.Demo.RatePerSecond)
		if err := lifecycle.RegisterSlowComponents(s.container, cfg.Demo.Prefix, cfg.Demo.First, cfg.Demo.Count, limiter); err != nil {
			return nil, fmt.Errorf("registering demo components: %w", err)
		}
	}

	placeholder, err := assets.LoadingPage(assets.PageConfig{
		Title:      cfg.Progress.Title,
		Message:    cfg.Progress.Message,
		StreamPath: cfg.Progress.StreamPath,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering placeholder page: %w", err)
	}

	streamHandler := stream.NewHandler(bus, cfg.Progress.WriteTimeout, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /info", s.handleInfo)
	// Viewers arriving after completion still get the replay and the complete frame
	mux.Handle(cfg.Progress.StreamPath, streamHandler)
	if s.metrics != nil {
		mux.Handle(cfg.Metrics.Path, s.metrics.Handler())
	}

	s.pipeline = gate.NewPipeline(mux)
	s.gate = gate.New(gate.Config{
		Completion:   bus,
		Pipeline:     s.pipeline,
		Stream:       streamHandler,
		StreamPath:   cfg.Progress.StreamPath,
		BlockedPaths: cfg.Progress.BlockedPaths,
		Placeholder:  placeholder,
		Recorder:     recorder,
		Logger:       logger,
	})

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           requestLogger(logger.With("component", "http"), s.pipeline),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Container returns the component container. Components must be registered
// before Run.
func (s *Server) Container() *lifecycle.Container {
	return s.container
}

// Bus returns the progress bus.
func (s *Server) Bus() *progress.Bus {
	return s.bus
}

// Handler returns the root HTTP handler, including request logging.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run opens the configured listener and serves until ctx is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if the
// server or a component fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.setupListener(ctx)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln, initializes the registered components and blocks until
// ctx is canceled or something fails. The server is already accepting
// connections while components initialize.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := s.startServer(ln)
	go s.initComponents(runCtx, errCh)

	serverErr := s.waitForShutdownSignal(ctx, errCh)
	cancel()

	shutdownErr := s.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// setupListener creates the listener based on configuration (Tailscale or TCP).
func (s *Server) setupListener(ctx context.Context) (net.Listener, error) {
	if s.config.Tailscale.Enabled {
		if s.config.Server.HTTPAddr != "" {
			s.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", s.config.Server.HTTPAddr)
		}
		return s.setupTailscaleListener(ctx)
	}

	s.logger.Info("starting server", "http_addr", s.config.Server.HTTPAddr)
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// startServer starts the HTTP server in a goroutine, returning the error channel.
func (s *Server) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 2)

	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// initComponents runs the container through the startup hook. A failed
// component stops the server; the gate stays in place until then.
func (s *Server) initComponents(ctx context.Context, errCh chan error) {
	if err := s.container.Start(ctx, s.hook); err != nil {
		if ctx.Err() != nil {
			return
		}
		errCh <- fmt.Errorf("starting components: %w", err)
		return
	}
	s.logger.Info("application started", "components", s.container.Len(), "elapsed", time.Since(s.startedAt))
}

// waitForShutdownSignal waits for context cancellation or server error.
func (s *Server) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		s.logger.Error("server error", "error", err)
		s.drainErrors(errCh)
		return err
	}
}

// drainErrors drains any remaining errors from the channel.
func (s *Server) drainErrors(errCh chan error) {
	select {
	case additionalErr := <-errCh:
		s.logger.Error("additional server error", "error", additionalErr)
	default:
	}
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() since the run context is already canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops the server and releases resources. The progress bus is
// closed first so open streams return before http.Server.Shutdown waits on them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	s.bus.Close()

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))

	if s.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", s.tsnetServer.Close())
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "bootwatch", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener joins the tailnet with tsnet and listens on :80.
func (s *Server) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := s.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	s.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	s.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := s.tsnetServer.Up(ctx)
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	s.logTailscaleStatus(tsCfg.Hostname, status)

	ln, err := s.tsnetServer.Listen("tcp", ":80")
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}
	return ln, nil
}

// logTailscaleStatus logs info about the tailscale node status.
func (s *Server) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		s.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	s.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}
