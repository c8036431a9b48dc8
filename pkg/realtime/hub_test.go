package realtime

import (
	"encoding/json"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wireEvent mirrors Event on the receiving side, with the payload left raw
// so each test can decode the shape it expects.
type wireEvent struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestHub(t *testing.T) (*Hub, *Router, *httptest.Server) {
	t.Helper()
	registry := NewRegistry()
	hub := NewHub(registry)
	router := NewRouter(registry, hub)
	hub.Bind(router)
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	return hub, router, srv
}

func dialWS(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	if userID != "" {
		url += "?userId=" + userID
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev wireEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

// waitPresence reads events until a presence snapshot matching want arrives.
// Other event types, and stale snapshots from racing connects, are skipped.
func waitPresence(t *testing.T, conn *websocket.Conn, want []string) {
	t.Helper()
	sorted := append([]string(nil), want...)
	sort.Strings(sorted)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ev := readEvent(t, conn)
		if ev.Type != EventOnlineUsers {
			continue
		}
		var online []string
		if err := json.Unmarshal(ev.Payload, &online); err != nil {
			t.Fatalf("decode presence payload: %v", err)
		}
		sort.Strings(online)
		if len(online) == len(sorted) {
			match := true
			for i := range sorted {
				if online[i] != sorted[i] {
					match = false
					break
				}
			}
			if match {
				return
			}
		}
	}
	t.Fatalf("presence snapshot %v never arrived", want)
}

func TestHubPresenceOnConnectAndDisconnect(t *testing.T) {
	_, _, srv := newTestHub(t)

	alice := dialWS(t, srv, "alice")
	waitPresence(t, alice, []string{"alice"})

	bob := dialWS(t, srv, "bob")
	waitPresence(t, alice, []string{"alice", "bob"})
	waitPresence(t, bob, []string{"alice", "bob"})

	bob.Close()
	waitPresence(t, alice, []string{"alice"})
}

func TestHubRoutesEventToUser(t *testing.T) {
	_, router, srv := newTestHub(t)

	alice := dialWS(t, srv, "alice")
	waitPresence(t, alice, []string{"alice"})

	if !router.SendToUser("alice", Event{Type: EventNewMessage, Payload: map[string]string{"text": "hi"}}) {
		t.Fatal("expected delivery to connected user")
	}
	for {
		ev := readEvent(t, alice)
		if ev.Type == EventOnlineUsers {
			continue
		}
		if ev.Type != EventNewMessage {
			t.Fatalf("unexpected event type %q", ev.Type)
		}
		var payload map[string]string
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["text"] != "hi" {
			t.Fatalf("unexpected payload %v", payload)
		}
		return
	}
}

func TestHubForwardsTypingToCounterpart(t *testing.T) {
	_, _, srv := newTestHub(t)

	alice := dialWS(t, srv, "alice")
	bob := dialWS(t, srv, "bob")
	waitPresence(t, alice, []string{"alice", "bob"})
	waitPresence(t, bob, []string{"alice", "bob"})

	if err := alice.WriteJSON(map[string]string{"type": "typing", "to": "bob"}); err != nil {
		t.Fatalf("write typing: %v", err)
	}
	for {
		ev := readEvent(t, bob)
		if ev.Type == EventOnlineUsers {
			continue
		}
		if ev.Type != EventTyping {
			t.Fatalf("unexpected event type %q", ev.Type)
		}
		var payload TypingPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.From != "alice" {
			t.Fatalf("typing attributed to %q, want alice", payload.From)
		}
		return
	}
}

func TestHubAnonymousSocketNotRoutable(t *testing.T) {
	_, router, srv := newTestHub(t)

	anon := dialWS(t, srv, "")
	alice := dialWS(t, srv, "alice")
	waitPresence(t, alice, []string{"alice"})

	// Broadcasts reach the anonymous socket; only alice shows as online.
	waitPresence(t, anon, []string{"alice"})

	// The anonymous socket is never a routing target.
	if router.SendToUser("", Event{Type: EventNewMessage}) {
		t.Fatal("empty user id must not resolve to a connection")
	}

	// Anonymous sockets cannot originate typing events.
	if err := anon.WriteJSON(map[string]string{"type": "typing", "to": "alice"}); err != nil {
		t.Fatalf("write typing: %v", err)
	}
	alice.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var ev wireEvent
	for {
		if err := alice.ReadJSON(&ev); err != nil {
			return // timed out with no typing event, as expected
		}
		if ev.Type == EventTyping {
			t.Fatal("typing from anonymous socket must not be forwarded")
		}
	}
}

func TestHubReconnectSupersedesOldConnection(t *testing.T) {
	hub, router, srv := newTestHub(t)

	first := dialWS(t, srv, "alice")
	waitPresence(t, first, []string{"alice"})

	second := dialWS(t, srv, "alice")
	waitPresence(t, second, []string{"alice"})

	// The first socket closing is a stale disconnect: the identity guard
	// keeps alice registered through her newer connection.
	first.Close()
	time.Sleep(100 * time.Millisecond)

	if !router.SendToUser("alice", Event{Type: EventNewMessage}) {
		t.Fatal("expected alice still routable through newer connection")
	}
	for {
		ev := readEvent(t, second)
		if ev.Type == EventNewMessage {
			break
		}
	}

	hub.mu.RLock()
	live := len(hub.clients)
	hub.mu.RUnlock()
	if live != 1 {
		t.Fatalf("expected 1 live client after stale disconnect, got %d", live)
	}
}
