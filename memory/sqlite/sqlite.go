package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/floe-ai/floe/llm"
	"github.com/floe-ai/floe/memory"
)

// SqliteStore implements memory.Store using SQLite.
type SqliteStore struct {
	db          *sql.DB
	tablePrefix string
}

// SqliteOptions configuration for the SQLite connection.
type SqliteOptions struct {
	Path        string
	TablePrefix string // Default "floe_memory"
}

var _ memory.Store = (*SqliteStore)(nil)
var _ memory.HistoryReplacer = (*SqliteStore)(nil)

// NewSqliteStore opens the database and creates the schema if needed.
func NewSqliteStore(opts SqliteOptions) (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	tablePrefix := opts.TablePrefix
	if tablePrefix == "" {
		tablePrefix = "floe_memory"
	}

	store := &SqliteStore{db: db, tablePrefix: tablePrefix}

	if err := store.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// InitSchema creates the history and context tables if they don't exist.
func (s *SqliteStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_messages_session ON %s_messages (session_id);
		CREATE TABLE IF NOT EXISTS %s_context (
			session_id TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			expires_at DATETIME,
			PRIMARY KEY (session_id, key)
		);
	`, s.tablePrefix, s.tablePrefix, s.tablePrefix, s.tablePrefix)

	_, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// Append inserts messages into the session history.
func (s *SqliteStore) Append(ctx context.Context, sessionID string, msgs ...memory.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(
		"INSERT INTO %s_messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)",
		s.tablePrefix,
	)
	for _, msg := range msgs {
		createdAt := msg.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := tx.ExecContext(ctx, query, sessionID, string(msg.Role), msg.Content, createdAt); err != nil {
			return fmt.Errorf("failed to append message: %w", err)
		}
	}

	return tx.Commit()
}

// Recent returns up to limit most recent messages in chronological order.
func (s *SqliteStore) Recent(ctx context.Context, sessionID string, limit int) ([]memory.Message, error) {
	query := fmt.Sprintf(`
		SELECT role, content, created_at
		FROM %s_messages
		WHERE session_id = ?
		ORDER BY id DESC
	`, s.tablePrefix)
	args := []any{sessionID}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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

	// Rows came back newest first; restore chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ReplaceHistory swaps the session's history inside a transaction.
func (s *SqliteStore) ReplaceHistory(ctx context.Context, sessionID string, msgs []memory.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	deleteQuery := fmt.Sprintf("DELETE FROM %s_messages WHERE session_id = ?", s.tablePrefix)
	if _, err := tx.ExecContext(ctx, deleteQuery, sessionID); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	insertQuery := fmt.Sprintf(
		"INSERT INTO %s_messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)",
		s.tablePrefix,
	)
	for _, msg := range msgs {
		createdAt := msg.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := tx.ExecContext(ctx, insertQuery, sessionID, string(msg.Role), msg.Content, createdAt); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	return tx.Commit()
}

// SetContext upserts a context value with an optional expiry.
func (s *SqliteStore) SetContext(ctx context.Context, sessionID, key string, value any, ttl time.Duration) error {
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
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at
	`, s.tablePrefix)

	if _, err := s.db.ExecContext(ctx, query, sessionID, key, string(data), expiresAt); err != nil {
		return fmt.Errorf("failed to set context value: %w", err)
	}
	return nil
}

// GetContext returns a context value, or false when missing or expired.
func (s *SqliteStore) GetContext(ctx context.Context, sessionID, key string) (any, bool, error) {
	query := fmt.Sprintf(
		"SELECT value, expires_at FROM %s_context WHERE session_id = ? AND key = ?",
		s.tablePrefix,
	)

	var raw string
	var expiresAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, sessionID, key).Scan(&raw, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get context value: %w", err)
	}

	if expiresAt.Valid && time.Now().After(expiresAt.Time) {
		deleteQuery := fmt.Sprintf("DELETE FROM %s_context WHERE session_id = ? AND key = ?", s.tablePrefix)
		s.db.ExecContext(ctx, deleteQuery, sessionID, key)
		return nil, false, nil
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal context value: %w", err)
	}
	return value, true, nil
}

// Clear removes a session's history and context values.
func (s *SqliteStore) Clear(ctx context.Context, sessionID string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s_messages WHERE session_id = ?;
	`, s.tablePrefix)
	if _, err := s.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	query = fmt.Sprintf("DELETE FROM %s_context WHERE session_id = ?", s.tablePrefix)
	if _, err := s.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to clear context values: %w", err)
	}
	return nil
}
