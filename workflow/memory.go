package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/floe-ai/floe/llm"
	"github.com/floe-ai/floe/memory"
)

// MemoryReaderConfig configures a memory reader vertex.
type MemoryReaderConfig struct {
	Store memory.Store

	// SessionKey names the input carrying the session id. Default
	// "session_id".
	SessionKey string

	// Limit caps how many recent messages are read. Zero reads the full
	// history.
	Limit int
}

// NewMemoryReader creates a vertex that loads conversation history for a
// session. Its output carries the turns under "history" in the shape LLM
// vertices consume.
func NewMemoryReader(id string, cfg MemoryReaderConfig, bindings ...Binding) *Vertex {
	return &Vertex{
		ID:       id,
		Kind:     KindMemoryReader,
		Bindings: bindings,
		task: func(ctx context.Context, rc *RunContext, inputs map[string]any) (map[string]any, error) {
			sessionID, err := sessionFrom(inputs, cfg.SessionKey)
			if err != nil {
				return nil, err
			}

			stored, err := cfg.Store.Recent(ctx, sessionID, cfg.Limit)
			if err != nil {
				return nil, err
			}

			history := make([]llm.Message, len(stored))
			for i, msg := range stored {
				history[i] = msg.ToLLM()
			}
			return map[string]any{
				"history": history,
				"count":   len(history),
			}, nil
		},
	}
}

// MemoryWriterConfig configures a memory writer vertex.
type MemoryWriterConfig struct {
	Store memory.Store

	// SessionKey names the input carrying the session id. Default
	// "session_id".
	SessionKey string

	// UserKey and ResponseKey name the inputs holding the user turn and
	// the assistant turn. Defaults "user" and "response". A missing or
	// empty input skips that turn.
	UserKey     string
	ResponseKey string

	// SummarizeAfter triggers summarization once the history exceeds this
	// many messages. Zero disables it.
	SummarizeAfter int

	// Summarize condenses the older span into one message. Required when
	// SummarizeAfter is set; the store must implement
	// memory.HistoryReplacer for the rewrite to apply.
	Summarize memory.SummarizeHook
}

// NewMemoryWriter creates a vertex that appends the current exchange to a
// session's history, optionally folding older turns into a summary.
func NewMemoryWriter(id string, cfg MemoryWriterConfig, bindings ...Binding) *Vertex {
	userKey := cfg.UserKey
	if userKey == "" {
		userKey = "user"
	}
	responseKey := cfg.ResponseKey
	if responseKey == "" {
		responseKey = "response"
	}

	return &Vertex{
		ID:       id,
		Kind:     KindMemoryWriter,
		Bindings: bindings,
		task: func(ctx context.Context, rc *RunContext, inputs map[string]any) (map[string]any, error) {
			sessionID, err := sessionFrom(inputs, cfg.SessionKey)
			if err != nil {
				return nil, err
			}

			now := time.Now()
			var msgs []memory.Message
			if text, ok := inputs[userKey].(string); ok && text != "" {
				msgs = append(msgs, memory.Message{Role: llm.RoleUser, Content: text, CreatedAt: now})
			}
			if text, ok := inputs[responseKey].(string); ok && text != "" {
				msgs = append(msgs, memory.Message{Role: llm.RoleAssistant, Content: text, CreatedAt: now})
			}

			if len(msgs) > 0 {
				if err := cfg.Store.Append(ctx, sessionID, msgs...); err != nil {
					return nil, err
				}
			}

			summarized, err := maybeSummarize(ctx, cfg, sessionID)
			if err != nil {
				return nil, err
			}

			return map[string]any{
				"appended":   len(msgs),
				"summarized": summarized,
			}, nil
		},
	}
}

// maybeSummarize folds history older than the threshold into a single
// summary message, keeping the most recent threshold turns verbatim.
func maybeSummarize(ctx context.Context, cfg MemoryWriterConfig, sessionID string) (bool, error) {
	if cfg.SummarizeAfter <= 0 || cfg.Summarize == nil {
		return false, nil
	}
	replacer, ok := cfg.Store.(memory.HistoryReplacer)
	if !ok {
		return false, nil
	}

	history, err := cfg.Store.Recent(ctx, sessionID, 0)
	if err != nil {
		return false, err
	}
	if len(history) <= cfg.SummarizeAfter {
		return false, nil
	}

	cut := len(history) - cfg.SummarizeAfter
	summary, err := cfg.Summarize(ctx, history[:cut])
	if err != nil {
		return false, err
	}

	replaced := make([]memory.Message, 0, cfg.SummarizeAfter+1)
	replaced = append(replaced, summary)
	replaced = append(replaced, history[cut:]...)
	if err := replacer.ReplaceHistory(ctx, sessionID, replaced); err != nil {
		return false, err
	}
	return true, nil
}

func sessionFrom(inputs map[string]any, key string) (string, error) {
	if key == "" {
		key = "session_id"
	}
	sessionID, _ := inputs[key].(string)
	if sessionID == "" {
		return "", fmt.Errorf("missing session id input %q", key)
	}
	return sessionID, nil
}
