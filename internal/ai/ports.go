package ai

import "context"

// Responder produces the auto-response text from the dialogue so far.
// It knows nothing about the store or the websocket layer.
type Responder interface {
	Reply(ctx context.Context, history []Message) (string, error)
}

// Message — universal dialogue format for the responder.
type Message struct {
	Role string // "user" | "assistant" | "system"
	Text string
}
