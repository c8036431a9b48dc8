package ai

import "context"

// FallbackReply is returned whenever the upstream model cannot be reached.
// It is persisted and delivered like any other reply so a conversation with
// the assistant always gets a terminal response.
const FallbackReply = "Sorry, I cannot connect to AI right now."

// Responder produces the assistant's reply to a user message. Implementations
// never return an error: any upstream failure resolves to a fallback string.
type Responder interface {
	Reply(ctx context.Context, text, imageURL string) string
}
