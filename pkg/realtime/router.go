package realtime

// Sender is the transport seam the router delivers through. The websocket
// hub is the production implementation; tests substitute a recorder.
type Sender interface {
	// Send delivers an event to a single connection. It reports whether the
	// connection accepted the event, and must never block.
	Send(connID string, ev Event) bool
	// Broadcast delivers an event to every live connection.
	Broadcast(ev Event)
}

// Router resolves user ids to live connections and pushes typed events to
// them. Delivery is best-effort, at-most-once, fire-and-forget: an offline
// target is a silent no-op and nothing is queued or retried. Realtime events
// are a notification layer over the durable store, never the source of truth.
type Router struct {
	registry *Registry
	sender   Sender
}

// NewRouter wires a router over the shared registry and a transport.
func NewRouter(registry *Registry, sender Sender) *Router {
	return &Router{registry: registry, sender: sender}
}

// SendToUser delivers ev to userID's connection if one is registered.
// It reports whether a delivery was attempted.
func (r *Router) SendToUser(userID string, ev Event) bool {
	connID, ok := r.registry.Resolve(userID)
	if !ok {
		return false
	}
	return r.sender.Send(connID, ev)
}

// SendToUsers fans ev out to every listed user that currently resolves.
// Unresolved members are skipped silently.
func (r *Router) SendToUsers(userIDs []string, ev Event) {
	for _, userID := range userIDs {
		r.SendToUser(userID, ev)
	}
}

// PublishPresence broadcasts the full online-user snapshot to all connected
// transports. Full set every time, no diffs; racing snapshots are tolerated.
func (r *Router) PublishPresence() {
	r.sender.Broadcast(Event{Type: EventOnlineUsers, Payload: r.registry.Online()})
}
