package realtime

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"vibechat/internal/util"
)

// Hub owns every live websocket connection and implements Sender for the
// router. The registry decides which connection a user id routes to; the hub
// only moves bytes.
type Hub struct {
	registry *Registry
	router   *Router
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*Client // connID -> client
}

// NewHub builds a hub over the shared registry.
func NewHub(registry *Registry) *Hub {
	return &Hub{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect cross-origin from the frontend host.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[string]*Client),
	}
}

// Bind attaches the router used for presence broadcasts and typing
// forwarding. Must be called before the hub serves connections.
func (h *Hub) Bind(router *Router) { h.router = router }

// ServeHTTP upgrades the connection and runs its pumps. The handshake
// carries the acting user id as the "userId" query parameter; without it the
// socket is served but never registered, so it receives broadcasts only and
// nothing routes to it.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}
	client := &Client{
		id:     util.NewID(),
		userID: r.URL.Query().Get("userId"),
		conn:   conn,
		send:   make(chan Event, sendBuffer),
	}

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()

	if client.userID != "" {
		h.registry.Register(client.userID, client.id)
		h.router.PublishPresence()
		slog.Info("user connected", "user_id", client.userID, "conn_id", client.id)
	}

	go client.writePump()
	client.readPump(h)
}

// Send queues ev on the connection's outbound channel. A full buffer drops
// the event rather than blocking the caller.
func (h *Hub) Send(connID string, ev Event) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[connID]
	if !ok {
		return false
	}
	select {
	case client.send <- ev:
		return true
	default:
		slog.Warn("dropping event for slow client", "conn_id", connID, "event", ev.Type)
		return false
	}
}

// Broadcast queues ev on every live connection, registered or not.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- ev:
		default:
		}
	}
}

// drop tears a connection down: removes it from the hub, unregisters it from
// routing (identity-guarded, so a superseded connection cannot evict its
// successor) and re-broadcasts presence.
func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()

	if c.userID != "" {
		h.registry.Unregister(c.userID, c.id)
		h.router.PublishPresence()
		slog.Info("user disconnected", "user_id", c.userID, "conn_id", c.id)
	}
}

// handleInbound dispatches an event pushed by a connected client. Composing
// indicators are forwarded to the direct counterpart only; groups never see
// typing events. Anonymous sockets cannot originate events.
func (h *Hub) handleInbound(c *Client, in inboundEvent) {
	if c.userID == "" || in.To == "" {
		return
	}
	switch in.Type {
	case EventTyping, EventStopTyping:
		h.router.SendToUser(in.To, Event{Type: in.Type, Payload: TypingPayload{From: c.userID}})
	default:
		// Unknown inbound types are ignored; state changes arrive via REST.
	}
}
