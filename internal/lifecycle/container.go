// ABOUTME: Component container that constructs registered components concurrently
// ABOUTME: Reports each initialized component and overall completion to a Listener

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrDuplicateComponent is returned when a name is registered twice.
	ErrDuplicateComponent = errors.New("component already registered")

	// ErrStarted is returned when the container is modified or started after Start.
	ErrStarted = errors.New("container already started")
)

// InitFunc constructs one component. It should honor ctx cancellation.
type InitFunc func(ctx context.Context) error

// Listener is notified as components come up.
// OnComponentInitialized may be called concurrently from several goroutines.
type Listener interface {
	OnComponentInitialized(name string)
	OnAllComponentsInitialized()
}

type component struct {
	name string
	init InitFunc
}

// Container holds the application's components and starts them once.
type Container struct {
	mu         sync.Mutex
	components []component
	names      map[string]struct{}
	started    bool
	workers    int
	logger     *slog.Logger
}

// NewContainer creates a container that initializes at most workers components
// at a time. workers <= 0 means no limit. Pass nil logger for default.
func NewContainer(workers int, logger *slog.Logger) *Container {
	if logger == nil {
		logger = slog.Default()
	}
	return &Container{
		names:   make(map[string]struct{}),
		workers: workers,
		logger:  logger.With("component", "container"),
	}
}

// Register adds a named component.
func (c *Container) Register(name string, init InitFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrStarted
	}
	if _, ok := c.names[name]; ok {
		return fmt.Errorf("registering %q: %w", name, ErrDuplicateComponent)
	}
	c.names[name] = struct{}{}
	c.components = append(c.components, component{name: name, init: init})
	return nil
}

// Len returns the number of registered components.
func (c *Container) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.components)
}

// Names returns registered component names in registration order.
func (c *Container) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.components))
	for i, comp := range c.components {
		out[i] = comp.name
	}
	return out
}

// Start initializes every component and reports progress to l. Components run
// concurrently; l sees them in the order they finish. On success l is told
// that all components are initialized. On the first failure the remaining
// components are cancelled and the error is returned without completion.
func (c *Container) Start(ctx context.Context, l Listener) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrStarted
	}
	c.started = true
	components := make([]component, len(c.components))
	copy(components, c.components)
	c.mu.Unlock()

	c.logger.Info("initializing components", "count", len(components), "workers", c.workers)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	if c.workers > 0 {
		g.SetLimit(c.workers)
	}
	for _, comp := range components {
		g.Go(func() error {
			if err := comp.init(gctx); err != nil {
				return fmt.Errorf("initializing %s: %w", comp.name, err)
			}
			l.OnComponentInitialized(comp.name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Error("component initialization failed", "error", err)
		return err
	}

	c.logger.Info("components initialized", "count", len(components), "elapsed", time.Since(start))
	l.OnAllComponentsInitialized()
	return nil
}
