// ABOUTME: Startup request gate that answers requests until initialization completes
// ABOUTME: Serves the placeholder page, the progress stream or a 500, then removes itself

package gate

import (
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"sync/atomic"
)

// State is the gate lifecycle. It only ever moves from Intercepting to Removed.
type State int32

const (
	StateIntercepting State = iota
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateIntercepting:
		return "intercepting"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Decision is how the gate answered a request.
type Decision int

const (
	DecisionPlaceholder Decision = iota
	DecisionStream
	DecisionBlocked
	DecisionPass
)

func (d Decision) String() string {
	switch d {
	case DecisionPlaceholder:
		return "placeholder"
	case DecisionStream:
		return "stream"
	case DecisionBlocked:
		return "blocked"
	case DecisionPass:
		return "pass"
	default:
		return "unknown"
	}
}

// Completion is the part of the progress bus the gate depends on.
type Completion interface {
	Completed() bool
	OnComplete(fn func())
}

// Recorder receives gate activity for instrumentation.
type Recorder interface {
	GateDecision(decision string)
	GateRemoved()
}

// Config configures a Gate.
type Config struct {
	// Completion reports startup completion. Required.
	Completion Completion

	// Pipeline is where the gate registers itself. Required.
	Pipeline Registrar

	// Stream serves the progress stream endpoint. Required.
	Stream http.Handler

	// StreamPath is the progress stream endpoint, e.g. "/init.stream".
	StreamPath string

	// BlockedPaths answer 500 while intercepting. An entry ending in "/"
	// blocks the whole subtree; anything else must match exactly.
	BlockedPaths []string

	// Placeholder is the page body served for every other path.
	Placeholder []byte

	// Recorder is optional.
	Recorder Recorder

	// Logger is optional.
	Logger *slog.Logger
}

// Gate intercepts every request while components are still initializing.
type Gate struct {
	completion  Completion
	pipeline    Registrar
	stream      http.Handler
	streamPath  string
	exact       map[string]struct{}
	prefixes    []string
	placeholder []byte
	recorder    Recorder
	logger      *slog.Logger

	state      atomic.Int32
	removeOnce sync.Once
}

// New creates a gate, registers it on cfg.Pipeline and arranges for it to be
// deregistered when cfg.Completion reports completion. If startup has already
// completed the gate is removed before New returns.
func New(cfg Config) *Gate {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gate{
		completion:  cfg.Completion,
		pipeline:    cfg.Pipeline,
		stream:      cfg.Stream,
		streamPath:  cfg.StreamPath,
		exact:       make(map[string]struct{}),
		placeholder: cfg.Placeholder,
		recorder:    cfg.Recorder,
		logger:      logger.With("component", "startup-gate"),
	}
	for _, p := range cfg.BlockedPaths {
		if strings.HasSuffix(p, "/") {
			g.prefixes = append(g.prefixes, p)
		} else {
			g.exact[p] = struct{}{}
		}
	}

	g.pipeline.Register(g)
	g.logger.Debug("gate registered", "stream_path", g.streamPath, "blocked", cfg.BlockedPaths)
	g.completion.OnComplete(g.remove)
	return g
}

// State returns the current gate state.
func (g *Gate) State() State {
	return State(g.state.Load())
}

// Wrap implements Interceptor.
func (g *Gate) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := g.Classify(r)
		if decision == DecisionPass {
			next.ServeHTTP(w, r)
			return
		}
		if g.recorder != nil {
			g.recorder.GateDecision(decision.String())
		}

		switch decision {
		case DecisionStream:
			g.stream.ServeHTTP(w, r)
		case DecisionBlocked:
			http.Error(w, "starting up", http.StatusInternalServerError)
		default:
			g.servePlaceholder(w)
		}
	})
}

// Classify decides how a request is answered. A request observed after
// startup completed triggers the gate's removal and passes through.
func (g *Gate) Classify(r *http.Request) Decision {
	if g.State() == StateRemoved {
		return DecisionPass
	}
	if g.completion.Completed() {
		g.remove()
		return DecisionPass
	}

	p := cleanPath(r.URL.Path)
	if p == g.streamPath {
		return DecisionStream
	}
	if g.isBlocked(p) {
		return DecisionBlocked
	}
	return DecisionPlaceholder
}

// cleanPath canonicalizes p the way http.ServeMux does before routing, so
// aliases such as //health or /x/../health match like /health.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	np := path.Clean(p)
	if strings.HasSuffix(p, "/") && np != "/" {
		np += "/"
	}
	return np
}

func (g *Gate) isBlocked(p string) bool {
	if _, ok := g.exact[p]; ok {
		return true
	}
	for _, prefix := range g.prefixes {
		if strings.HasPrefix(p, prefix) || p == strings.TrimSuffix(prefix, "/") {
			return true
		}
	}
	return false
}

func (g *Gate) servePlaceholder(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(g.placeholder)
}

// remove deregisters the gate exactly once, however many times completion
// is observed.
func (g *Gate) remove() {
	g.removeOnce.Do(func() {
		g.state.Store(int32(StateRemoved))
		removed := g.pipeline.Deregister(g)
		if g.recorder != nil {
			g.recorder.GateRemoved()
		}
		g.logger.Debug("application started, gate deregistered", "was_registered", removed)
	})
}
