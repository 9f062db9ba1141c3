// Package router implements the server-side routing fabric: per-client
// outboxes, the in/out worker pair for each authenticated session, and the
// socket/outbox registry shared across sessions (spec.md §4.5).
package router

import "github.com/vcsms/vcsms/pkg/metrics"

// Outbox is a FIFO queue of constructed plaintext messages bound for one
// Client ID. It is an MPSC queue: any in-worker may push (on first relay to
// this ID), one out-worker pops. It persists across brief disconnects so
// offline traffic is not dropped (spec.md §3, §8 invariant 5).
type Outbox struct {
	ch chan []byte
}

// DefaultOutboxCapacity bounds backlog before the oldest pending message is
// dropped with a logged warning and an outbox_overflow relay-error count
// (spec.md §5 "Backpressure").
const DefaultOutboxCapacity = 1024

func newOutbox(capacity int) *Outbox {
	if capacity <= 0 {
		capacity = DefaultOutboxCapacity
	}
	return &Outbox{ch: make(chan []byte, capacity)}
}

// Push enqueues msg, dropping the oldest pending message if the outbox is
// at capacity. It returns true unless a drop occurred.
func (o *Outbox) Push(msg []byte) (ok bool) {
	select {
	case o.ch <- msg:
		return true
	default:
	}
	select {
	case <-o.ch:
	default:
	}
	select {
	case o.ch <- msg:
	default:
	}
	metrics.Global().RecordRelayError("outbox_overflow")
	metrics.GetLogger().Warn("outbox_overflow", map[string]any{"capacity": cap(o.ch)})
	return false
}

// Len returns the number of messages currently queued.
func (o *Outbox) Len() int { return len(o.ch) }

// Pop blocks until a message is available or done is closed.
func (o *Outbox) Pop(done <-chan struct{}) ([]byte, bool) {
	select {
	case msg := <-o.ch:
		return msg, true
	case <-done:
		return nil, false
	}
}
