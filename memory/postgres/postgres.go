package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floe-ai/floe/llm"
	"github.com/floe-ai/floe/memory"
)

// DBPool defines the interface for database connection pool
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements memory.Store using PostgreSQL.
type PostgresStore struct {
	pool        DBPool
	tablePrefix string
}

// PostgresOptions configuration for the Postgres connection.
type PostgresOptions struct {
	ConnString  string
	TablePrefix string // Default "floe_memory"
}

var _ memory.Store = (*PostgresStore)(nil)
var _ memory.HistoryReplacer = (*PostgresStore)(nil)

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(ctx context.Context, opts PostgresOptions) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	tablePrefix := opts.TablePrefix
	if tablePrefix == "" {
		tablePrefix = "floe_memory"
	}

	return &PostgresStore{pool: pool, tablePrefix: tablePrefix}, nil
}

// NewPostgresStoreWithPool creates a store with an existing pool.
// Useful for testing with mocks.
func NewPostgresStoreWithPool(pool DBPool, tablePrefix string) *PostgresStore {
	if tablePrefix == "" {
		tablePrefix = "floe_memory"
	}
	return &PostgresStore{pool: pool, tablePrefix: tablePrefix}
}

// InitSchema creates the history and context tables if they don't exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s_messages (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_messages_session ON %s_messages (session_id);
		CREATE TABLE IF NOT EXISTS %s_context (
			session_id TEXT NOT NULL,
			key TEXT NOT NULL,
			value JSONB NOT NULL,
			expires_at TIMESTAMPTZ,
			PRIMARY KEY (session_id, key)
		);
	`, s.tablePrefix, s.tablePrefix, s.tablePrefix, s.tablePrefix)

	_, err := s.pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Append inserts messages into the session history.
func (s *PostgresStore) Append(ctx context.Context, sessionID string, msgs ...memory.Message) error {
	query := fmt.Sprintf(
		"INSERT INTO %s_messages (session_id, role, content, created_at) VALUES ($1, $2, $3, $4)",
		s.tablePrefix,
	)

	for _, msg := range msgs {
		createdAt := msg.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := s.pool.Exec(ctx, query, sessionID, string(msg.Role), msg.Content, createdAt); err != nil {
			return fmt.Errorf("failed to append message: %w", err)
		}
	}
	return nil
}

// Recent returns up to limit most recent messages in chronological order.
func (s *PostgresStore) Recent(ctx context.Context, sessionID string, limit int) ([]memory.Message, error) {
	query := fmt.Sprintf(`
		SELECT role, content, created_at
		FROM %s_messages
		WHERE session_id = $1
		ORDER BY id DESC
	`, s.tablePrefix)
	args := []any{sessionID}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer rows.Close()

	var msgs []memory.Message
	for rows.Next() {
		var msg memory.Message
		var role string
		if err := rows.Scan(&role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msg.Role = llm.Role(role)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ReplaceHistory swaps the session's history wholesale.
func (s *PostgresStore) ReplaceHistory(ctx context.Context, sessionID string, msgs []memory.Message) error {
	deleteQuery := fmt.Sprintf("DELETE FROM %s_messages WHERE session_id = $1", s.tablePrefix)
	if _, err := s.pool.Exec(ctx, deleteQuery, sessionID); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return s.Append(ctx, sessionID, msgs...)
}

// SetContext upserts a context value with an optional expiry.
func (s *PostgresStore) SetContext(ctx context.Context, sessionID, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal context value: %w", err)
	}

	var expiresAt any
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s_context (session_id, key, value, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, key) DO UPDATE SET
			value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at
	`, s.tablePrefix)

	if _, err := s.pool.Exec(ctx, query, sessionID, key, data, expiresAt); err != nil {
		return fmt.Errorf("failed to set context value: %w", err)
	}
	return nil
}

// GetContext returns a context value, or false when missing or expired.
func (s *PostgresStore) GetContext(ctx context.Context, sessionID, key string) (any, bool, error) {
	query := fmt.Sprintf(
		"SELECT value, expires_at FROM %s_context WHERE session_id = $1 AND key = $2",
		s.tablePrefix,
	)

	var raw []byte
	var expiresAt *time.Time
	err := s.pool.QueryRow(ctx, query, sessionID, key).Scan(&raw, &expiresAt)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get context value: %w", err)
	}

	if expiresAt != nil && time.Now().After(*expiresAt) {
		return nil, false, nil
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal context value: %w", err)
	}
	return value, true, nil
}

// Clear removes a session's history and context values.
func (s *PostgresStore) Clear(ctx context.Context, sessionID string) error {
	query := fmt.Sprintf("DELETE FROM %s_messages WHERE session_id = $1", s.tablePrefix)
	if _, err := s.pool.Exec(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	query = fmt.Sprintf("DELETE FROM %s_context WHERE session_id = $1", s.tablePrefix)
	if _, err := s.pool.Exec(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to clear context values: %w", err)
	}
	return nil
}
