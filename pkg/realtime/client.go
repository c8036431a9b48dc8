package realtime

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 10

	// sendBuffer bounds per-connection queued events. A client that cannot
	// drain this many events loses the overflow (best-effort delivery).
	sendBuffer = 32
)

// Client is one live websocket connection. Events flow out through a single
// buffered channel drained by writePump, which preserves per-connection
// delivery order.
type Client struct {
	id     string
	userID string // empty for anonymous sockets, which are never routable
	conn   *websocket.Conn
	send   chan Event
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// UserID returns the authenticated user id, or "" for anonymous sockets.
func (c *Client) UserID() string { return c.userID }

// writePump serializes all writes to the socket. One goroutine per
// connection; exits when the send channel closes or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes inbound frames until the socket dies. The only
// application events a client may push are composing indicators, and those
// are forwarded to the direct counterpart only.
func (c *Client) readPump(h *Hub) {
	defer h.drop(c)
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		var in inboundEvent
		if err := c.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", "conn_id", c.id, "err", err)
			}
			return
		}
		h.handleInbound(c, in)
	}
}
