// ABOUTME: Per-viewer subscription state for the progress bus
// ABOUTME: Tracks the next sequence number to deliver and a one-shot closed signal

package progress

import "sync"

// State is the lifecycle state of a Subscription.
type State int

const (
	StateActive State = iota
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Subscription is one viewer's position in the event log. It is owned by the
// handler that created it; the bus only keeps a registration so that it can
// be closed on shutdown.
type Subscription struct {
	id string

	// cursor is the next sequence number to deliver. Guarded by the bus mutex.
	cursor uint64

	closeOnce sync.Once
	closed    chan struct{}
}

// ID returns the subscription identifier used in logs.
func (s *Subscription) ID() string {
	return s.id
}

// State reports whether the subscription is still active.
func (s *Subscription) State() State {
	if s.isClosed() {
		return StateClosed
	}
	return StateActive
}

// Closed returns a channel that is closed when the subscription ends.
func (s *Subscription) Closed() <-chan struct{} {
	return s.closed
}

func (s *Subscription) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// markClosed closes the subscription and reports whether this call did it.
func (s *Subscription) markClosed() bool {
	closedNow := false
	s.closeOnce.Do(func() {
		close(s.closed)
		closedNow = true
	})
	return closedNow
}
