package memory

import (
	"context"
	"time"

	"github.com/floe-ai/floe/llm"
)

// Message is a single conversational turn kept in session history.
type Message struct {
	Role      llm.Role  `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ToLLM converts a stored message into the provider message shape.
func (m Message) ToLLM() llm.Message {
	return llm.Message{Role: m.Role, Content: m.Content}
}

// Store persists per-session conversation history and scoped context
// values. Implementations must be safe for concurrent use.
type Store interface {
	// Append adds messages to the end of a session's history.
	Append(ctx context.Context, sessionID string, msgs ...Message) error

	// Recent returns up to limit most recent messages in chronological
	// order. limit <= 0 returns the full history.
	Recent(ctx context.Context, sessionID string, limit int) ([]Message, error)

	// SetContext stores a keyed value scoped to a session. A positive ttl
	// expires the value; zero keeps it until cleared.
	SetContext(ctx context.Context, sessionID, key string, value any, ttl time.Duration) error

	// GetContext returns a context value and whether it exists and has not
	// expired.
	GetContext(ctx context.Context, sessionID, key string) (any, bool, error)

	// Clear removes a session's history and context values.
	Clear(ctx context.Context, sessionID string) error
}

// HistoryReplacer is implemented by stores that can swap a session's
// history wholesale, which summarization needs.
type HistoryReplacer interface {
	ReplaceHistory(ctx context.Context, sessionID string, msgs []Message) error
}

// SummarizeHook condenses older history into a single summary message.
// Writer vertices call it when a session's history exceeds the configured
// threshold; the returned message replaces the summarized span.
type SummarizeHook func(ctx context.Context, history []Message) (Message, error)
