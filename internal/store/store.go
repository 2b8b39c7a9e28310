// Package store provides durable persistence for chat sessions and their
// message logs. A session is an opaque-ID conversation thread; messages are
// append-only per session and ordered by creation time, which is the
// canonical transcript order injected into the LLM context on later turns.
//
// Two backends satisfy the ConversationStore interface: SQLite for
// single-host deployments and Postgres for managed databases. Role and
// content-length invariants are enforced in the write path of both backends,
// not just by database constraints.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser is a message sent by the human user.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the answer generator.
	RoleAssistant Role = "assistant"
)

// Content length bounds enforced before any message write.
const (
	// MinContentLen is the minimum message content length in characters.
	MinContentLen = 1
	// MaxContentLen is the maximum message content length in characters.
	MaxContentLen = 10000
)

// ChunkRef records one retrieved chunk that grounded an assistant answer.
type ChunkRef struct {
	// Title is the source document title.
	Title string `json:"title"`
	// FilePath is the source file path.
	FilePath string `json:"file_path"`
	// RelevanceScore is the chunk's similarity score against the query.
	RelevanceScore float32 `json:"relevance_score"`
}

// ContextUsed is the structured payload attached to assistant messages,
// recording which chunks grounded the answer. On refusal turns it carries an
// empty chunk list and a zero count, keeping refusals auditable.
type ContextUsed struct {
	// Chunks lists every retrieved chunk, in retrieval order.
	Chunks []ChunkRef `json:"chunks"`
	// RetrievalCount is the number of chunks retrieved for the turn.
	RetrievalCount int `json:"retrieval_count"`
}

// Session is a multi-turn conversation thread.
type Session struct {
	// ID is the opaque unique session identifier (UUID).
	ID string
	// CreatedAt is when the session was created.
	CreatedAt time.Time
	// LastActivityAt is when the session last received a message.
	// Always >= CreatedAt.
	LastActivityAt time.Time
}

// Message is a single turn in a conversation.
type Message struct {
	// ID is the unique message identifier (UUID).
	ID string
	// SessionID is the session this message belongs to.
	SessionID string
	// Role is the author of the message.
	Role Role
	// Content is the text of the message.
	Content string
	// SelectedText is optional page text the user had selected (user turns).
	// Empty when absent.
	SelectedText string
	// ContextUsed records the chunks that grounded the answer (assistant
	// turns only). Nil when absent.
	ContextUsed *ContextUsed
	// CreatedAt is when the message was persisted.
	CreatedAt time.Time
}

// ConversationStore persists and retrieves sessions and messages.
// Implementations must be safe for concurrent use. Session and message
// writes are independent transactions — a message write never creates a
// session implicitly; callers create the session first.
type ConversationStore interface {
	// CreateSession persists a new empty session and returns its ID.
	CreateSession(ctx context.Context) (string, error)

	// History returns all messages for the session in ascending creation
	// order. An unknown session yields an empty slice, not an error — the
	// caller uses this to distinguish "never happened" from "store down".
	History(ctx context.Context, sessionID string) ([]Message, error)

	// SaveMessage validates and persists a single message, returning its ID.
	// Role must be user or assistant and content length within
	// [MinContentLen, MaxContentLen]; violations return a *ValidationError
	// before anything is written. The session's last-activity timestamp is
	// bumped as a side effect.
	SaveMessage(ctx context.Context, sessionID string, role Role, content, selectedText string, contextUsed *ContextUsed) (string, error)

	// HealthCheck runs a cheap read-only probe. It never mutates.
	HealthCheck(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// ErrSessionNotFound is returned at the API boundary when a history lookup
// targets a session with no messages. The store-level History call itself
// never returns this — it reports an empty slice.
var ErrSessionNotFound = errors.New("store: session not found")

// ValidationError reports a message that violated a business invariant and
// was rejected before any write.
type ValidationError struct {
	// Field names the offending attribute ("role" or "content").
	Field string
	// Reason describes the violation.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("store: invalid %s: %s", e.Field, e.Reason)
}

// StoreError wraps a connectivity or query failure from the underlying
// database engine.
type StoreError struct {
	// Op is the operation that failed (e.g. "save message").
	Op string
	// Err is the underlying driver error.
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// validateMessage enforces the role and content invariants shared by all
// backends. Returns a *ValidationError on the first violation.
// Content length is counted in characters, matching the databases'
// LENGTH() check constraints, so multibyte text is not over-counted.
func validateMessage(role Role, content string) error {
	if role != RoleUser && role != RoleAssistant {
		return &ValidationError{Field: "role", Reason: fmt.Sprintf("%q is not one of user, assistant", role)}
	}
	n := utf8.RuneCountInString(content)
	if n < MinContentLen {
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if n > MaxContentLen {
		return &ValidationError{Field: "content", Reason: fmt.Sprintf("length %d exceeds maximum %d", n, MaxContentLen)}
	}
	return nil
}
