// ABOUTME: Ordered, replayable progress bus for component startup events
// ABOUTME: Appends are serialized; subscribers pull from a cursor and are woken on change

package progress

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrSubscriptionClosed is returned by Pull once the subscription was unsubscribed.
	ErrSubscriptionClosed = errors.New("subscription closed")

	// ErrBusClosed is returned by Pull after the bus has been shut down.
	ErrBusClosed = errors.New("progress bus closed")
)

// Event records one component finishing initialization.
type Event struct {
	Name string
	Seq  uint64
}

// Batch is the result of a single Pull.
// Completed is only true once the subscription has consumed every event of a
// completed log, so it is the signal to emit the terminal marker.
type Batch struct {
	Events    []Event
	Completed bool
}

// Recorder receives bus activity for instrumentation. All methods must be cheap.
type Recorder interface {
	EventAppended()
	StartupCompleted()
	SubscriberAdded()
	SubscriberRemoved()
}

// Bus is an append-only log of startup events with a one-way completion flag.
// Every subscriber starts reading at sequence 1, so late viewers replay the
// full history before seeing live events.
type Bus struct {
	mu          sync.Mutex
	events      []Event
	completed   bool
	closed      bool
	changed     chan struct{} // closed and replaced on every append/complete/close
	done        chan struct{} // closed on completion
	subscribers map[string]*Subscription
	onComplete  []func()
	recorder    Recorder
	logger      *slog.Logger
}

// NewBus creates an empty bus. Pass nil logger for default.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		changed:     make(chan struct{}),
		done:        make(chan struct{}),
		subscribers: make(map[string]*Subscription),
		logger:      logger.With("component", "progress-bus"),
	}
}

// SetRecorder attaches an instrumentation recorder.
// Must be called before the bus is shared between goroutines.
func (b *Bus) SetRecorder(r Recorder) {
	b.mu.Lock()
	b.recorder = r
	b.mu.Unlock()
}

// Append records that the named component finished initializing.
// It returns false, without error, if the log is already completed.
// Append never waits on subscribers: it only signals that data is available.
func (b *Bus) Append(name string) (Event, bool) {
	b.mu.Lock()
	if b.completed {
		b.mu.Unlock()
		b.logger.Debug("ignoring append after completion", "name", name)
		return Event{}, false
	}

	ev := Event{Name: name, Seq: uint64(len(b.events)) + 1}
	b.events = append(b.events, ev)
	b.broadcastLocked()
	rec := b.recorder
	b.mu.Unlock()

	if rec != nil {
		rec.EventAppended()
	}
	b.logger.Debug("event appended", "name", name, "seq", ev.Seq)
	return ev, true
}

// Complete marks the log as finished. Only the first call has any effect:
// it wakes every subscriber and then runs the completion callbacks in
// registration order.
func (b *Bus) Complete() {
	b.mu.Lock()
	if b.completed {
		b.mu.Unlock()
		return
	}
	b.completed = true
	close(b.done)
	b.broadcastLocked()
	callbacks := b.onComplete
	b.onComplete = nil
	total := len(b.events)
	rec := b.recorder
	b.mu.Unlock()

	b.logger.Info("startup completed", "events", total)
	if rec != nil {
		rec.StartupCompleted()
	}
	for _, fn := range callbacks {
		fn()
	}
}

// OnComplete registers fn to run once the bus completes. If it already has,
// fn runs immediately on the calling goroutine.
func (b *Bus) OnComplete(fn func()) {
	b.mu.Lock()
	if b.completed {
		b.mu.Unlock()
		fn()
		return
	}
	b.onComplete = append(b.onComplete, fn)
	b.mu.Unlock()
}

// Done returns a channel that is closed when the bus completes.
func (b *Bus) Done() <-chan struct{} {
	return b.done
}

// Completed reports whether Complete has been called.
func (b *Bus) Completed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.completed
}

// Events returns a copy of the log.
func (b *Bus) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Subscribe creates a subscription positioned at the start of the log.
// The subscription is released automatically when ctx is cancelled; callers
// should still Unsubscribe when they are done with it.
func (b *Bus) Subscribe(ctx context.Context) *Subscription {
	sub := &Subscription{
		id:     uuid.New().String(),
		cursor: 1,
		closed: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		sub.markClosed()
		b.mu.Unlock()
		return sub
	}
	b.subscribers[sub.id] = sub
	rec := b.recorder
	b.mu.Unlock()

	if rec != nil {
		rec.SubscriberAdded()
	}
	b.logger.Debug("subscriber added", "sub_id", sub.id)

	go func() {
		select {
		case <-ctx.Done():
			b.Unsubscribe(sub)
		case <-sub.closed:
		}
	}()

	return sub
}

// Pull returns every event from the subscription's cursor onward and advances
// the cursor past them. If nothing is available and the log is still open it
// blocks until an append, completion, unsubscribe, bus shutdown or ctx end.
func (b *Bus) Pull(ctx context.Context, sub *Subscription) (Batch, error) {
	for {
		b.mu.Lock()
		if sub.isClosed() {
			b.mu.Unlock()
			return Batch{}, ErrSubscriptionClosed
		}
		if b.closed {
			b.mu.Unlock()
			return Batch{}, ErrBusClosed
		}

		available := uint64(len(b.events))
		if sub.cursor <= available {
			events := make([]Event, available-sub.cursor+1)
			copy(events, b.events[sub.cursor-1:])
			sub.cursor = available + 1
			completed := b.completed
			b.mu.Unlock()
			return Batch{Events: events, Completed: completed}, nil
		}
		if b.completed {
			b.mu.Unlock()
			return Batch{Completed: true}, nil
		}
		wait := b.changed
		b.mu.Unlock()

		select {
		case <-wait:
		case <-sub.closed:
			return Batch{}, ErrSubscriptionClosed
		case <-ctx.Done():
			return Batch{}, ctx.Err()
		}
	}
}

// Unsubscribe closes the subscription and drops the bus's reference to it.
// Safe to call more than once and concurrently with Pull.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if !sub.markClosed() {
		return
	}

	b.mu.Lock()
	_, registered := b.subscribers[sub.id]
	delete(b.subscribers, sub.id)
	rec := b.recorder
	b.mu.Unlock()

	if !registered {
		return
	}
	if rec != nil {
		rec.SubscriberRemoved()
	}
	b.logger.Debug("subscriber removed", "sub_id", sub.id)
}

// Close shuts the bus down and closes every subscription. Pending and future
// Pull calls return ErrBusClosed or ErrSubscriptionClosed. The log itself is
// left untouched.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.broadcastLocked()
	b.mu.Unlock()

	for _, sub := range subs {
		b.Unsubscribe(sub)
	}
	b.logger.Debug("progress bus closed", "subscribers", len(subs))
}

// broadcastLocked wakes every Pull waiting on the current generation.
func (b *Bus) broadcastLocked() {
	close(b.changed)
	b.changed = make(chan struct{})
}
