package interfaces

import (
	"context"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role is the message author: "system", "user", or "assistant"
	Role string

	// Content is the message text
	Content string
}

// LLMService is the chat-completion transport behind the enrichment client.
// Implementations wrap a single provider (Claude, Gemini); the enrichment
// client owns prompts, parsing and retries, the service owns the wire call.
type LLMService interface {
	// Chat generates a completion for the conversation history.
	// Messages must be in chronological order and contain at least one
	// user message.
	Chat(ctx context.Context, messages []Message) (string, error)

	// HealthCheck verifies the service is operational.
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the service.
	Close() error
}
