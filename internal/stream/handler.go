// ABOUTME: Server-Sent Events handler that streams startup progress to one client
// ABOUTME: Replays the progress log, follows live appends and ends with a complete frame

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/bootwatch/internal/progress"
)

// DefaultWriteTimeout bounds how long a single frame may take to reach the client.
const DefaultWriteTimeout = 10 * time.Second

// completeFrame is the terminal frame sent once startup has finished.
const completeFrame = "event: complete\ndata:\n\n"

var frameSanitizer = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// Handler streams the progress bus as text/event-stream. Each request owns one
// subscription for its whole lifetime.
type Handler struct {
	bus          *progress.Bus
	writeTimeout time.Duration
	logger       *slog.Logger
}

// NewHandler creates a stream handler. A zero writeTimeout uses DefaultWriteTimeout;
// pass nil logger for default.
func NewHandler(bus *progress.Bus, writeTimeout time.Duration, logger *slog.Logger) *Handler {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		bus:          bus,
		writeTimeout: writeTimeout,
		logger:       logger.With("component", "progress-stream"),
	}
}

// ServeHTTP handles GET on the stream endpoint.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Check streaming support before subscribing (fail fast)
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	sub := h.bus.Subscribe(ctx)
	defer h.bus.Unsubscribe(sub)

	logger := h.logger.With("sub_id", sub.ID(), "remote_addr", r.RemoteAddr)
	logger.Debug("progress viewer connected")

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if r.Method == http.MethodHead {
		return
	}

	if err := h.stream(ctx, w, sub); err != nil {
		logger.Debug("progress viewer disconnected", "error", err)
		return
	}
	logger.Debug("progress stream completed")
}

// stream runs the pull/deliver loop until completion or the first failure.
func (h *Handler) stream(ctx context.Context, w http.ResponseWriter, sub *progress.Subscription) error {
	rc := http.NewResponseController(w)
	for {
		batch, err := h.bus.Pull(ctx, sub)
		if err != nil {
			return err
		}

		for _, ev := range batch.Events {
			if err := h.writeFrame(rc, w, FormatEvent(ev)); err != nil {
				return fmt.Errorf("writing event %d: %w", ev.Seq, err)
			}
		}

		if batch.Completed {
			if err := h.writeFrame(rc, w, completeFrame); err != nil {
				return fmt.Errorf("writing complete frame: %w", err)
			}
			return nil
		}
	}
}

// writeFrame writes one frame under a write deadline and flushes it.
func (h *Handler) writeFrame(rc *http.ResponseController, w io.Writer, frame string) error {
	if err := rc.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if _, err := io.WriteString(w, frame); err != nil {
		return err
	}
	return rc.Flush()
}

// FormatEvent formats an event as a single SSE data frame:
// data: <name>\n\n
func FormatEvent(ev progress.Event) string {
	return "data: " + frameSanitizer.Replace(ev.Name) + "\n\n"
}

// CompleteFrame returns the terminal frame written after the last event.
func CompleteFrame() string {
	return completeFrame
}
