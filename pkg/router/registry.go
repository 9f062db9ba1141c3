package router

import "sync"

// Registry is the shared client_id -> (outbox, live_socket_handle?) map
// described in spec.md §3/§5: one mutex guards both the outbox map (written
// on first reference to an ID, from a new session or a relay to it) and the
// socket map (written by Bind at session creation and Unbind at teardown;
// read by Live).
type Registry struct {
	mu       sync.RWMutex
	outboxes map[string]*Outbox
	sockets  map[string]*Session
	capacity int
}

// NewRegistry returns an empty Registry whose outboxes are created with the
// given per-client capacity (0 selects DefaultOutboxCapacity).
func NewRegistry(outboxCapacity int) *Registry {
	return &Registry{
		outboxes: make(map[string]*Outbox),
		sockets:  make(map[string]*Session),
		capacity: outboxCapacity,
	}
}

// OutboxFor returns the Outbox for id, creating it if this is the first
// reference (either the ID's own handshake or another client routing to it).
func (r *Registry) OutboxFor(id string) *Outbox {
	r.mu.RLock()
	if ob, ok := r.outboxes[id]; ok {
		r.mu.RUnlock()
		return ob
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if ob, ok := r.outboxes[id]; ok {
		return ob
	}
	ob := newOutbox(r.capacity)
	r.outboxes[id] = ob
	return ob
}

// Bind associates id with its live session and returns any prior live
// session it displaced, for the caller to close (spec.md §8 boundary behavior:
// "the second login displaces the first's live socket but the outbox is
// shared").
func (r *Registry) Bind(id string, s *Session) (displaced *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	displaced = r.sockets[id]
	r.sockets[id] = s
	return displaced
}

// Unbind removes id's live session entry if it still points at s (a session
// that was already displaced must not clobber its successor's entry on its
// own, delayed teardown).
func (r *Registry) Unbind(id string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sockets[id]; ok && cur == s {
		delete(r.sockets, id)
	}
}

// Live returns the live session for id, if any.
func (r *Registry) Live(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sockets[id]
	return s, ok
}
