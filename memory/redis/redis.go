package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/floe-ai/floe/memory"
)

// RedisStore implements memory.Store on top of Redis. History lives in a
// list per session, context values in plain keys so Redis can expire them.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisOptions configuration for the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // Default "floe:memory"
}

var _ memory.Store = (*RedisStore)(nil)
var _ memory.HistoryReplacer = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(opts RedisOptions) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "floe:memory"
	}

	return &RedisStore{client: client, prefix: prefix}
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) historyKey(sessionID string) string {
	return fmt.Sprintf("%s:%s:history", s.prefix, sessionID)
}

func (s *RedisStore) contextKey(sessionID, key string) string {
	return fmt.Sprintf("%s:%s:ctx:%s", s.prefix, sessionID, key)
}

// Append pushes messages onto the session's history list.
func (s *RedisStore) Append(ctx context.Context, sessionID string, msgs ...memory.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	values := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		values = append(values, data)
	}

	if err := s.client.RPush(ctx, s.historyKey(sessionID), values...).Err(); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// Recent returns up to limit most recent messages in chronological order.
func (s *RedisStore) Recent(ctx context.Context, sessionID string, limit int) ([]memory.Message, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}

	raw, err := s.client.LRange(ctx, s.historyKey(sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	msgs := make([]memory.Message, 0, len(raw))
	for _, item := range raw {
		var msg memory.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// ReplaceHistory swaps the session's history list in one transaction.
func (s *RedisStore) ReplaceHistory(ctx context.Context, sessionID string, msgs []memory.Message) error {
	values := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		values = append(values, data)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.historyKey(sessionID))
	if len(values) > 0 {
		pipe.RPush(ctx, s.historyKey(sessionID), values...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to replace history: %w", err)
	}
	return nil
}

// SetContext stores a context value, letting Redis handle expiry.
func (s *RedisStore) SetContext(ctx context.Context, sessionID, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal context value: %w", err)
	}

	if err := s.client.Set(ctx, s.contextKey(sessionID, key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set context value: %w", err)
	}
	return nil
}

// GetContext returns a context value, or false when missing or expired.
func (s *RedisStore) GetContext(ctx context.Context, sessionID, key string) (any, bool, error) {
	raw, err := s.client.Get(ctx, s.contextKey(sessionID, key)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get context value: %w", err)
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal context value: %w", err)
	}
	return value, true, nil
}

// Clear removes the session's history and all its context values.
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	keys, err := s.client.Keys(ctx, fmt.Sprintf("%s:%s:*", s.prefix, sessionID)).Result()
	if err != nil {
		return fmt.Errorf("failed to enumerate session keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
