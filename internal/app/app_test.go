package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vibechat/pkg/ai"
	"vibechat/pkg/domain"
	"vibechat/pkg/realtime"
	"vibechat/pkg/store"
)

// fakeSender records routed events per connection. Safe for concurrent use
// because the AI reply path delivers from a detached goroutine.
type fakeSender struct {
	mu         sync.Mutex
	sent       map[string][]realtime.Event
	broadcasts []realtime.Event
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(map[string][]realtime.Event)}
}

func (s *fakeSender) Send(connID string, ev realtime.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[connID] = append(s.sent[connID], ev)
	return true
}

func (s *fakeSender) Broadcast(ev realtime.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcasts = append(s.broadcasts, ev)
}

func (s *fakeSender) eventsFor(connID string) []realtime.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]realtime.Event(nil), s.sent[connID]...)
}

// stubResponder returns a canned reply.
type stubResponder struct{ text string }

func (r stubResponder) Reply(context.Context, string, string) string { return r.text }

func newTestApp(t *testing.T, responder ai.Responder) (*App, *store.MemoryStore, *realtime.Registry, *fakeSender) {
	t.Helper()
	mem := store.NewMemoryStore()
	registry := realtime.NewRegistry()
	sender := newFakeSender()
	router := realtime.NewRouter(registry, sender)
	a, err := New(Config{
		Store:          mem,
		Sessions:       mem,
		Router:         router,
		Responder:      responder,
		AIReplyTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, mem, registry, sender
}

func seedUser(t *testing.T, mem *store.MemoryStore, id, name string) domain.User {
	t.Helper()
	now := time.Now().UTC()
	u := domain.User{
		ID:           id,
		Name:         name,
		Email:        id + "@example.com",
		PasswordHash: "x",
		BlockedUsers: []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := mem.SaveUser(u); err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return u
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSendMessageDeliversToOnlineReceiver(t *testing.T) {
	a, mem, registry, sender := newTestApp(t, nil)
	seedUser(t, mem, "alice", "Alice")
	seedUser(t, mem, "bob", "Bob")
	registry.Register("bob", "conn-bob")

	msg, err := a.SendMessage(context.Background(), "alice", "bob", "hello", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.ID == "" || msg.SenderID != "alice" || msg.ReceiverID != "bob" {
		t.Fatalf("unexpected message %+v", msg)
	}

	history, err := mem.ListConversation("alice", "bob")
	if err != nil || len(history) != 1 {
		t.Fatalf("expected 1 persisted message, got %d (err %v)", len(history), err)
	}

	events := sender.eventsFor("conn-bob")
	if len(events) != 1 || events[0].Type != realtime.EventNewMessage {
		t.Fatalf("unexpected events for receiver: %+v", events)
	}
	delivered, ok := events[0].Payload.(domain.Message)
	if !ok || delivered.ID != msg.ID {
		t.Fatalf("delivered payload does not match persisted message: %+v", events[0].Payload)
	}
}

func TestSendMessageOfflineReceiverPersistsOnly(t *testing.T) {
	a, mem, _, sender := newTestApp(t, nil)
	seedUser(t, mem, "alice", "Alice")
	seedUser(t, mem, "bob", "Bob")

	if _, err := a.SendMessage(context.Background(), "alice", "bob", "hello", ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	history, _ := mem.ListConversation("alice", "bob")
	if len(history) != 1 {
		t.Fatalf("expected 1 persisted message, got %d", len(history))
	}
	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.sent) != 0 {
		t.Fatalf("expected no realtime deliveries, got %+v", sender.sent)
	}
}

func TestSendMessageRejectsBlockedBeforePersist(t *testing.T) {
	a, mem, _, sender := newTestApp(t, nil)
	seedUser(t, mem, "alice", "Alice")
	seedUser(t, mem, "bob", "Bob")

	if err := mem.BlockUser("bob", "alice"); err != nil {
		t.Fatalf("block: %v", err)
	}
	if _, err := a.SendMessage(context.Background(), "alice", "bob", "hi", ""); !errors.Is(err, ErrBlockedByThem) {
		t.Fatalf("expected ErrBlockedByThem, got %v", err)
	}

	if err := mem.UnblockUser("bob", "alice"); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	if err := mem.BlockUser("alice", "bob"); err != nil {
		t.Fatalf("block: %v", err)
	}
	if _, err := a.SendMessage(context.Background(), "alice", "bob", "hi", ""); !errors.Is(err, ErrBlockedByYou) {
		t.Fatalf("expected ErrBlockedByYou, got %v", err)
	}

	history, _ := mem.ListConversation("alice", "bob")
	if len(history) != 0 {
		t.Fatalf("blocked sends must not persist, found %d messages", len(history))
	}
	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.sent) != 0 {
		t.Fatalf("blocked sends must not emit events, got %+v", sender.sent)
	}
}

func TestSendMessageRejectsEmpty(t *testing.T) {
	a, mem, _, _ := newTestApp(t, nil)
	seedUser(t, mem, "alice", "Alice")
	seedUser(t, mem, "bob", "Bob")
	if _, err := a.SendMessage(context.Background(), "alice", "bob", "", ""); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestSendMessageUnknownReceiver(t *testing.T) {
	a, mem, _, _ := newTestApp(t, nil)
	seedUser(t, mem, "alice", "Alice")
	if _, err := a.SendMessage(context.Background(), "alice", "ghost", "hi", ""); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSendMessageToAITriggersExactlyOneReply(t *testing.T) {
	a, mem, registry, sender := newTestApp(t, stubResponder{text: "certainly!"})
	seedUser(t, mem, "alice", "Alice")
	aiUser := seedUser(t, mem, "assistant", "ChatGPT")
	aiUser.IsAI = true
	if err := mem.SaveUser(aiUser); err != nil {
		t.Fatalf("save ai user: %v", err)
	}
	registry.Register("alice", "conn-alice")

	if _, err := a.SendMessage(context.Background(), "alice", "assistant", "hello ai", ""); err != nil {
		t.Fatalf("send: %v", err)
	}

	waitFor(t, func() bool {
		history, _ := mem.ListConversation("alice", "assistant")
		return len(history) == 2
	}, "ai reply never persisted")

	history, _ := mem.ListConversation("alice", "assistant")
	reply := history[1]
	if reply.SenderID != "assistant" || reply.ReceiverID != "alice" {
		t.Fatalf("reply has wrong parties: %+v", reply)
	}
	if reply.Text != "certainly!" {
		t.Fatalf("unexpected reply text %q", reply.Text)
	}

	waitFor(t, func() bool {
		return len(sender.eventsFor("conn-alice")) == 1
	}, "ai reply never routed to sender")
	ev := sender.eventsFor("conn-alice")[0]
	if ev.Type != realtime.EventNewMessage {
		t.Fatalf("unexpected event type %q", ev.Type)
	}

	// Exactly one terminal response: no extra messages show up afterwards.
	time.Sleep(100 * time.Millisecond)
	history, _ = mem.ListConversation("alice", "assistant")
	if len(history) != 2 {
		t.Fatalf("expected exactly one reply, conversation has %d messages", len(history))
	}
}

func TestAIFallbackWhenResponderUnavailable(t *testing.T) {
	// A nil responder config degrades to the static fallback text.
	a, mem, _, _ := newTestApp(t, nil)
	seedUser(t, mem, "alice", "Alice")
	aiUser := seedUser(t, mem, "assistant", "ChatGPT")
	aiUser.IsAI = true
	if err := mem.SaveUser(aiUser); err != nil {
		t.Fatalf("save ai user: %v", err)
	}

	if _, err := a.SendMessage(context.Background(), "alice", "assistant", "hello?", ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	waitFor(t, func() bool {
		history, _ := mem.ListConversation("alice", "assistant")
		return len(history) == 2
	}, "fallback reply never persisted")
	history, _ := mem.ListConversation("alice", "assistant")
	if history[1].Text != ai.FallbackReply {
		t.Fatalf("expected fallback reply, got %q", history[1].Text)
	}
}

func TestConversationMarksIncomingSeen(t *testing.T) {
	a, mem, _, _ := newTestApp(t, nil)
	seedUser(t, mem, "alice", "Alice")
	seedUser(t, mem, "bob", "Bob")

	if _, err := a.SendMessage(context.Background(), "bob", "alice", "one", ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := a.SendMessage(context.Background(), "bob", "alice", "two", ""); err != nil {
		t.Fatalf("send: %v", err)
	}

	count, _ := mem.CountUnseen("bob", "alice")
	if count != 2 {
		t.Fatalf("expected 2 unseen before read, got %d", count)
	}

	history, err := a.Conversation("alice", "bob")
	if err != nil || len(history) != 2 {
		t.Fatalf("conversation: %d messages, err %v", len(history), err)
	}
	count, _ = mem.CountUnseen("bob", "alice")
	if count != 0 {
		t.Fatalf("expected 0 unseen after read, got %d", count)
	}
}

func TestUsersForSidebarUnseenCounts(t *testing.T) {
	a, mem, _, _ := newTestApp(t, nil)
	seedUser(t, mem, "alice", "Alice")
	seedUser(t, mem, "bob", "Bob")
	seedUser(t, mem, "carol", "Carol")

	if _, err := a.SendMessage(context.Background(), "bob", "alice", "hi", ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := a.SendMessage(context.Background(), "bob", "alice", "there", ""); err != nil {
		t.Fatalf("send: %v", err)
	}

	sidebar, err := a.UsersForSidebar("alice")
	if err != nil {
		t.Fatalf("sidebar: %v", err)
	}
	counts := make(map[string]int, len(sidebar))
	for _, entry := range sidebar {
		counts[entry.User.ID] = entry.Unseen
	}
	if len(sidebar) != 2 || counts["bob"] != 2 || counts["carol"] != 0 {
		t.Fatalf("unexpected sidebar %+v", sidebar)
	}
}

func TestBlockAndUnblockNotifyBlockee(t *testing.T) {
	a, mem, registry, sender := newTestApp(t, nil)
	seedUser(t, mem, "alice", "Alice")
	seedUser(t, mem, "bob", "Bob")
	registry.Register("bob", "conn-bob")

	if err := a.BlockUser("alice", "bob"); err != nil {
		t.Fatalf("block: %v", err)
	}
	alice, _, _ := mem.GetUserByID("alice")
	if !alice.HasBlocked("bob") {
		t.Fatal("block edge not persisted")
	}
	events := sender.eventsFor("conn-bob")
	if len(events) != 1 || events[0].Type != realtime.EventUserBlocked {
		t.Fatalf("unexpected blockee events %+v", events)
	}
	if payload := events[0].Payload.(realtime.BlockPayload); payload.BlockerID != "alice" {
		t.Fatalf("unexpected block payload %+v", payload)
	}

	if err := a.UnblockUser("alice", "bob"); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	alice, _, _ = mem.GetUserByID("alice")
	if alice.HasBlocked("bob") {
		t.Fatal("block edge not removed")
	}
	events = sender.eventsFor("conn-bob")
	if len(events) != 2 || events[1].Type != realtime.EventUserUnblocked {
		t.Fatalf("unexpected blockee events %+v", events)
	}
}

func TestDeleteMessagesNotifiesBothParties(t *testing.T) {
	a, mem, registry, sender := newTestApp(t, nil)
	seedUser(t, mem, "alice", "Alice")
	seedUser(t, mem, "bob", "Bob")
	registry.Register("alice", "conn-alice")
	registry.Register("bob", "conn-bob")

	msg, err := a.SendMessage(context.Background(), "alice", "bob", "oops", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := a.DeleteMessages("alice", []string{msg.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	stored, ok, _ := mem.GetMessage(msg.ID)
	if !ok || !stored.IsDeleted {
		t.Fatalf("message not soft-deleted: %+v", stored)
	}
	for _, connID := range []string{"conn-alice", "conn-bob"} {
		var found bool
		for _, ev := range sender.eventsFor(connID) {
			if ev.Type == realtime.EventMessagesDeleted {
				found = true
				payload := ev.Payload.(realtime.MessagesDeletedPayload)
				if len(payload.MessageIDs) != 1 || payload.MessageIDs[0] != msg.ID {
					t.Fatalf("unexpected deletion payload %+v", payload)
				}
			}
		}
		if !found {
			t.Fatalf("no messagesDeleted event on %s", connID)
		}
	}
}

func TestGroupLifecycle(t *testing.T) {
	a, mem, registry, sender := newTestApp(t, nil)
	seedUser(t, mem, "alice", "Alice")
	seedUser(t, mem, "bob", "Bob")
	seedUser(t, mem, "carol", "Carol")
	registry.Register("bob", "conn-bob")

	// Duplicate member ids and the creator collapse into one membership each.
	group, err := a.CreateGroup(context.Background(), "alice", "trio", "", []string{"bob", "carol", "bob", "alice"}, "")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if len(group.Members) != 3 {
		t.Fatalf("expected 3 members, got %v", group.Members)
	}
	if len(group.Admins) != 1 || group.Admins[0] != "alice" {
		t.Fatalf("creator must be sole admin, got %v", group.Admins)
	}
	if events := sender.eventsFor("conn-bob"); len(events) != 1 || events[0].Type != realtime.EventNewGroup {
		t.Fatalf("member missed newGroup event: %+v", events)
	}

	msg, err := a.SendGroupMessage(context.Background(), "bob", group.ID, "hey all", "")
	if err != nil {
		t.Fatalf("send group message: %v", err)
	}
	// Fan-out includes the sender's own connection.
	var sawOwn bool
	for _, ev := range sender.eventsFor("conn-bob") {
		if ev.Type == realtime.EventNewGroupMessage {
			if got := ev.Payload.(domain.Message); got.ID == msg.ID {
				sawOwn = true
			}
		}
	}
	if !sawOwn {
		t.Fatal("sender did not receive own group message event")
	}

	if _, err := a.SendGroupMessage(context.Background(), "mallory", group.ID, "let me in", ""); !errors.Is(err, ErrNotGroupMember) {
		t.Fatalf("expected ErrNotGroupMember, got %v", err)
	}
	if _, err := a.GroupMessages("mallory", group.ID); !errors.Is(err, ErrNotGroupMember) {
		t.Fatalf("expected ErrNotGroupMember, got %v", err)
	}

	history, err := a.GroupMessages("carol", group.ID)
	if err != nil || len(history) != 1 {
		t.Fatalf("group history: %d messages, err %v", len(history), err)
	}

	if err := a.DeleteGroup("bob", group.ID); !errors.Is(err, ErrNotGroupAdmin) {
		t.Fatalf("expected ErrNotGroupAdmin, got %v", err)
	}
	if err := a.DeleteGroup("alice", group.ID); err != nil {
		t.Fatalf("delete group: %v", err)
	}
	if _, ok, _ := mem.GetGroup(group.ID); ok {
		t.Fatal("group record still present after delete")
	}
	var sawDeleted bool
	for _, ev := range sender.eventsFor("conn-bob") {
		if ev.Type == realtime.EventGroupDeleted {
			sawDeleted = true
		}
	}
	if !sawDeleted {
		t.Fatal("member missed groupDeleted event")
	}
}

func TestSignUpLoginLogout(t *testing.T) {
	a, _, _, _ := newTestApp(t, nil)

	user, token, err := a.SignUp("Alice", "Alice@Example.com ", "s3cret", "hi")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", user.Email)
	}
	if got, ok := a.UserFromToken(token); !ok || got.ID != user.ID {
		t.Fatalf("token does not resolve to user: ok=%v", ok)
	}

	if _, _, err := a.SignUp("Alice 2", "alice@example.com", "pw", ""); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	if _, _, err := a.Login("alice@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := a.Login("nobody@example.com", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	_, loginToken, err := a.Login("alice@example.com", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := a.Logout(loginToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := a.UserFromToken(loginToken); ok {
		t.Fatal("token still valid after logout")
	}
}

func TestEnsureAIUserIdempotent(t *testing.T) {
	a, mem, _, _ := newTestApp(t, nil)
	if err := a.EnsureAIUser(); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	first, ok, _ := mem.GetUserByEmail(AIUserEmail)
	if !ok || !first.IsAI {
		t.Fatalf("ai user not created: %+v", first)
	}
	if err := a.EnsureAIUser(); err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	second, _, _ := mem.GetUserByEmail(AIUserEmail)
	if second.ID != first.ID {
		t.Fatal("ensure recreated the ai user")
	}
}
