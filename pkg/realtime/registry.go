package realtime

import "sync"

// Registry maps a user id to its single live connection id. A user has at
// most one routable connection: a newer registration replaces the old entry
// without closing the old socket (last registration wins).
type Registry struct {
	mu    sync.RWMutex
	conns map[string]string // userID -> connID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]string)}
}

// Register associates userID with connID, replacing any prior association.
func (r *Registry) Register(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[userID] = connID
}

// Unregister removes the association only when connID still matches the
// registered connection. A stale disconnect racing a newer registration for
// the same user must not evict the newer connection. Unknown users are a
// no-op.
func (r *Registry) Unregister(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.conns[userID]; ok && current == connID {
		delete(r.conns, userID)
	}
}

// Resolve returns the connection id for userID, if any. Absence means
// "cannot deliver now", never an error: messages stay durable regardless.
func (r *Registry) Resolve(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.conns[userID]
	return connID, ok
}

// Online returns a snapshot of all user ids with a live connection.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.conns))
	for userID := range r.conns {
		ids = append(ids, userID)
	}
	return ids
}
