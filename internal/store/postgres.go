package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a ConversationStore backed by a Postgres database via a
// pgx connection pool. Suitable for managed Postgres (Neon, RDS, etc.).
type PostgresStore struct {
	// pool is the underlying pgx connection pool.
	pool *pgxpool.Pool
}

// OpenPostgres connects to the database at databaseURL, verifies the
// connection, and runs the schema migration. maxConns caps the pool size
// (defaults to 10 if zero).
func OpenPostgres(ctx context.Context, databaseURL string, maxConns int32) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse database url: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 10
	}
	poolCfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist. Mirrors the
// SQLite schema with native UUID, TIMESTAMPTZ, and JSONB column types.
func (s *PostgresStore) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
    session_id       UUID        PRIMARY KEY,
    created_at       TIMESTAMPTZ NOT NULL,
    last_activity_at TIMESTAMPTZ NOT NULL,
    CONSTRAINT chk_activity_after_creation CHECK (last_activity_at >= created_at)
);
CREATE TABLE IF NOT EXISTS messages (
    message_id    UUID        PRIMARY KEY,
    seq           BIGSERIAL,
    session_id    UUID        NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
    role          TEXT        NOT NULL CONSTRAINT chk_valid_role CHECK (role IN ('user','assistant')),
    content       TEXT        NOT NULL CONSTRAINT chk_content_length CHECK (length(content) BETWEEN 1 AND 10000),
    selected_text TEXT,
    context_used  JSONB,
    created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session_created
    ON messages (session_id, created_at, seq);
`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// CreateSession persists a new empty session and returns its ID.
func (s *PostgresStore) CreateSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	const q = `INSERT INTO sessions (session_id, created_at, last_activity_at) VALUES ($1, $2, $3)`
	if _, err := s.pool.Exec(ctx, q, id, now, now); err != nil {
		return "", &StoreError{Op: "create session", Err: err}
	}
	return id, nil
}

// History returns all messages for the session, oldest first. An unknown
// session yields an empty slice. The seq tiebreak keeps the two turns of a
// single query in insertion order even when their timestamps collide.
func (s *PostgresStore) History(ctx context.Context, sessionID string) ([]Message, error) {
	const q = `
SELECT message_id, session_id, role, content, selected_text, context_used, created_at
FROM   messages
WHERE  session_id = $1
ORDER  BY created_at ASC, seq ASC`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, &StoreError{Op: "history", Err: err}
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var role string
		var selected *string
		var contextRaw []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &selected, &contextRaw, &m.CreatedAt); err != nil {
			return nil, &StoreError{Op: "history scan", Err: err}
		}
		m.Role = Role(role)
		if selected != nil {
			m.SelectedText = *selected
		}
		if len(contextRaw) > 0 {
			var cu ContextUsed
			if err := json.Unmarshal(contextRaw, &cu); err != nil {
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
// last-activity timestamp is bumped afterwards in a separate statement.
func (s *PostgresStore) SaveMessage(ctx context.Context, sessionID string, role Role, content, selectedText string, contextUsed *ContextUsed) (string, error) {
	if err := validateMessage(role, content); err != nil {
		return "", err
	}

	var contextRaw []byte
	if contextUsed != nil {
		raw, err := json.Marshal(contextUsed)
		if err != nil {
			return "", &StoreError{Op: "encode context", Err: err}
		}
		contextRaw = raw
	}

	var selected *string
	if selectedText != "" {
		selected = &selectedText
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	const q = `
INSERT INTO messages (message_id, session_id, role, content, selected_text, context_used, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := s.pool.Exec(ctx, q, id, sessionID, string(role), content, selected, contextRaw, now); err != nil {
		return "", &StoreError{Op: "save message", Err: err}
	}

	const bump = `UPDATE sessions SET last_activity_at = GREATEST(last_activity_at, $1) WHERE session_id = $2`
	if _, err := s.pool.Exec(ctx, bump, now, sessionID); err != nil {
		return "", &StoreError{Op: "touch session", Err: err}
	}

	return id, nil
}

// HealthCheck runs a cheap count query against the sessions table.
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return &StoreError{Op: "health check", Err: err}
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
