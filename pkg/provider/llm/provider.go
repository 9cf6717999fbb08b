// Package llm defines the Provider interface for Large Language Model
// backends.
//
// A provider wraps a chat-completion API (OpenAI, or anything reachable via
// the any-llm universal adapter) and exposes the one operation this system
// needs: messages in, text out. There is deliberately no streaming surface —
// replies are short spoken sentences and the full text is required before
// synthesis anyway.
//
// Implementations must be safe for concurrent use and must tolerate empty
// model output: an empty Content with a nil error is a valid response that
// the orchestrator's retry loop handles.
package llm

import "context"

// Message is a single message in a conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// CompletionRequest carries everything the model needs to produce a reply.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is
	// typically from the "user" role and drives the response.
	Messages []Message

	// SystemPrompt is an optional high-priority instruction injected before
	// the conversation history (the business persona, classification rubric,
	// etc.).
	SystemPrompt string

	// Temperature controls output randomness in [0.0, 2.0]. Zero means use
	// the provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// Provider is the abstraction over any chat-completion backend.
//
// Each method must propagate context cancellation promptly.
type Provider interface {
	// Complete sends req to the model and returns the reply text. An empty
	// string with a nil error is valid (the model produced nothing); callers
	// must not treat it as success.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Name identifies the provider in logs and metrics (e.g. "openai").
	Name() string
}
