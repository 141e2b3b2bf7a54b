package memory

import (
	"context"
	"sync"
	"time"
)

type contextEntry struct {
	value     any
	expiresAt time.Time // zero means no expiry
}

// InMemoryStore keeps history and context values in process memory.
// Suitable for tests and single-process runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	messages map[string][]Message
	values   map[string]map[string]contextEntry
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty in-process store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		messages: make(map[string][]Message),
		values:   make(map[string]map[string]contextEntry),
	}
}

// Append adds messages to the session history.
func (s *InMemoryStore) Append(ctx context.Context, sessionID string, msgs ...Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[sessionID] = append(s.messages[sessionID], msgs...)
	return nil
}

// Recent returns up to limit most recent messages in chronological order.
func (s *InMemoryStore) Recent(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.messages[sessionID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	out := make([]Message, len(history))
	copy(out, history)
	return out, nil
}

// SetContext stores a session-scoped value with an optional ttl.
func (s *InMemoryStore) SetContext(ctx context.Context, sessionID, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := contextEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	if s.values[sessionID] == nil {
		s.values[sessionID] = make(map[string]contextEntry)
	}
	s.values[sessionID][key] = entry
	return nil
}

// GetContext returns a stored value unless it is missing or expired.
func (s *InMemoryStore) GetContext(ctx context.Context, sessionID, key string) (any, bool, error) {
	s.mu.RLock()
	entry, ok := s.values[sessionID][key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.values[sessionID], key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Clear removes all history and context values for a session.
func (s *InMemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.messages, sessionID)
	delete(s.values, sessionID)
	return nil
}

// ReplaceHistory swaps a session's history wholesale. Writer vertices use
// it after summarization collapses older turns.
func (s *InMemoryStore) ReplaceHistory(ctx context.Context, sessionID string, msgs []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(msgs))
	copy(out, msgs)
	s.messages[sessionID] = out
	return nil
}
