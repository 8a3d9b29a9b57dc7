// ABOUTME: Adapter from host lifecycle callbacks to the progress bus
// ABOUTME: Each initialized component becomes one appended event; completion fires once

package startup

import (
	"log/slog"
	"sync"

	"github.com/2389/bootwatch/internal/progress"
)

// Hook receives lifecycle notifications from the component container and
// forwards them to the progress bus. It is safe for concurrent use.
type Hook struct {
	bus          *progress.Bus
	logger       *slog.Logger
	completeOnce sync.Once
}

// NewHook creates a hook that reports to bus. Pass nil logger for default.
func NewHook(bus *progress.Bus, logger *slog.Logger) *Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hook{
		bus:    bus,
		logger: logger.With("component", "startup-hook"),
	}
}

// OnComponentInitialized records that the named component is ready.
func (h *Hook) OnComponentInitialized(name string) {
	ev, ok := h.bus.Append(name)
	if !ok {
		h.logger.Debug("component reported after startup completed", "name", name)
		return
	}
	h.logger.Info("component started", "name", name, "seq", ev.Seq)
}

// OnAllComponentsInitialized completes the progress log. Only the first call
// has an effect.
func (h *Hook) OnAllComponentsInitialized() {
	h.completeOnce.Do(func() {
		h.logger.Info("all components initialized")
		h.bus.Complete()
	})
}
