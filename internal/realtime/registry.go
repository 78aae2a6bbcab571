// Package realtime holds the per-identity connection registry, the event
// dispatcher that fans domain events out to live connections, and the
// websocket transport behind both.
package realtime

import "sync"

// Conn is one live real-time connection. Send must not block on network
// I/O: implementations hand the payload to a per-connection writer and
// return an error immediately if the connection cannot take it.
type Conn interface {
	Send(data []byte) error
	Close() error
}

// Registry maps stable user identities to their currently live connections.
// An identity may hold several connections at once (multi-tab, multi-device).
// It carries no business semantics; it is a pure identity->connections index.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]map[Conn]struct{})}
}

// Register adds a connection under userID. Re-registering the same
// connection is a no-op.
func (r *Registry) Register(userID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[userID]
	if !ok {
		set = make(map[Conn]struct{})
		r.conns[userID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes exactly that connection; the identity's entry is pruned
// once its last connection is gone.
func (r *Registry) Unregister(userID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[userID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, userID)
	}
}

// ConnectionsFor returns the live connections of userID, possibly none.
func (r *Registry) ConnectionsFor(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.conns[userID]
	if len(set) == 0 {
		return nil
	}
	out := make([]Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// ConnectionCount reports how many live connections userID currently holds.
func (r *Registry) ConnectionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID])
}
