package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

// SQLiteStore is a ConversationStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultSQLitePath returns the default path for the conversation database.
// It resolves to ~/.ragchat/conversations.db, creating the directory if needed.
func DefaultSQLitePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".ragchat")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "conversations.db"), nil
}

// OpenSQLite opens (or creates) a SQLiteStore at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	// WAL improves concurrent read performance; foreign_keys must be enabled
	// per connection for the cascade delete to work.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist. The role and
// content-length checks mirror the validation in the write path; the database
// constraint is a backstop, not the enforcement point.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
    session_id       TEXT    PRIMARY KEY,
    created_at       INTEGER NOT NULL,  -- Unix milliseconds
    last_activity_at INTEGER NOT NULL CHECK(last_activity_at >= created_at)
);
CREATE TABLE IF NOT EXISTS messages (
    message_id    TEXT    PRIMARY KEY,
    session_id    TEXT    NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
    role          TEXT    NOT NULL CHECK(role IN ('user','assistant')),
    content       TEXT    NOT NULL CHECK(LENGTH(content) BETWEEN 1 AND 10000),
    selected_text TEXT,
    context_used  TEXT,
    created_at    INTEGER NOT NULL  -- Unix milliseconds
);
CREATE INDEX IF NOT EXISTS idx_messages_session_created
    ON messages (session_id, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// CreateSession persists a new empty session and returns its ID.
func (s *SQLiteStore) CreateSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	now := time.Now().UnixMilli()
	const q = `INSERT INTO sessions (session_id, created_at, last_activity_at) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, id, now, now); err != nil {
		return "", &StoreError{Op: "create session", Err: err}
	}
	return id, nil
}

// History returns all messages for the session, oldest first. An unknown
// session yields an empty slice.
func (s *SQLiteStore) History(ctx context.Context, sessionID string) ([]Message, error) {
	const q = `
SELECT message_id, session_id, role, content, selected_text, context_used, created_at
FROM   messages
WHERE  session_id = ?
ORDER  BY created_at ASC, rowid ASC`

	rows, err := s.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, &StoreError{Op: "history", Err: err}
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var role string
		var selected, contextJSON sql.NullString
		var ts int64
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &selected, &contextJSON, &ts); err != nil {
			return nil, &StoreError{Op: "history scan", Err: err}
		}
		m.Role = Role(role)
		m.SelectedText = selected.String
		m.CreatedAt = time.UnixMilli(ts)
		if contextJSON.Valid && contextJSON.String != "" {
			var cu ContextUsed
			if err := json.Unmarshal([]byte(contextJSON.String), &cu); err != nil {
				return nil, &StoreError{Op: "history decode context", Err: err}
			}
			m.ContextUsed = &cu
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "history rows", Err: err}
	}
	return msgs, nil
}

// SaveMessage validates and persists a single message. The session's
// last-activity timestamp is bumped afterwards (last-write-wins — no
// transaction spans the two statements).
func (s *SQLiteStore) SaveMessage(ctx context.Context, sessionID string, role Role, content, selectedText string, contextUsed *ContextUsed) (string, error) {
	if err := validateMessage(role, content); err != nil {
		return "", err
	}

	var contextJSON sql.NullString
	if contextUsed != nil {
		raw, err := json.Marshal(contextUsed)
		if err != nil {
			return "", &StoreError{Op: "encode context", Err: err}
		}
		contextJSON = sql.NullString{String: string(raw), Valid: true}
	}

	var selected sql.NullString
	if selectedText != "" {
		selected = sql.NullString{String: selectedText, Valid: true}
	}

	id := uuid.NewString()
	now := time.Now().UnixMilli()
	const q = `
INSERT INTO messages (message_id, session_id, role, content, selected_text, context_used, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, id, sessionID, string(role), content, selected, contextJSON, now); err != nil {
		return "", &StoreError{Op: "save message", Err: err}
	}

	const bump = `UPDATE sessions SET last_activity_at = MAX(last_activity_at, ?) WHERE session_id = ?`
	if _, err := s.db.ExecContext(ctx, bump, now, sessionID); err != nil {
		return "", &StoreError{Op: "touch session", Err: err}
	}

	return id, nil
}

// HealthCheck runs a cheap count query against the sessions table.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return &StoreError{Op: "health check", Err: err}
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
