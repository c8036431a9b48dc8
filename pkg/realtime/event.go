package realtime

// EventType enumerates every event the router can emit. The set is closed:
// handlers switch over it exhaustively and clients reject unknown types.
type EventType string

const (
	EventOnlineUsers     EventType = "getOnlineUsers"
	EventNewMessage      EventType = "newMessage"
	EventNewGroupMessage EventType = "newGroupMessage"
	EventTyping          EventType = "typing"
	EventStopTyping      EventType = "stop_typing"
	EventUserBlocked     EventType = "userBlocked"
	EventUserUnblocked   EventType = "userUnblocked"
	EventMessagesDeleted EventType = "messagesDeleted"
	EventNewGroup        EventType = "newGroup"
	EventGroupDeleted    EventType = "groupDeleted"
)

// Event is the unit of realtime delivery: a type tag plus its payload.
// Payload shapes are fixed per type (see the payload structs below).
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// TypingPayload accompanies typing and stop_typing events.
type TypingPayload struct {
	From string `json:"from"`
}

// BlockPayload accompanies userBlocked and userUnblocked events.
type BlockPayload struct {
	BlockerID string `json:"blockerId"`
}

// MessagesDeletedPayload accompanies messagesDeleted events.
type MessagesDeletedPayload struct {
	MessageIDs []string `json:"messageIds"`
}

// inboundEvent is what a connected client may send over the socket.
// Only composing indicators are accepted; everything else arrives via REST.
type inboundEvent struct {
	Type EventType `json:"type"`
	To   string    `json:"to"`
}
