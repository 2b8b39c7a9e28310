package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/physai-book/ragchat-go/internal/rag"
	"github.com/physai-book/ragchat-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [slog.Default] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on POST /api/chat
	// (requests/second). Defaults to 60 requests/hour if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 10 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// CORSOrigins lists the origins allowed to call the API from a browser.
	// Empty disables CORS headers entirely.
	CORSOrigins []string
	// Registry receives the server's Prometheus metrics. If nil a fresh
	// registry is created and served at GET /metrics.
	Registry *prometheus.Registry
}

// chatPipeline is the interface the handlers call to process queries.
// *rag.Pipeline satisfies it; tests inject a fake.
type chatPipeline interface {
	// ProcessQuery runs one query end to end and returns the result.
	ProcessQuery(ctx context.Context, query, sessionID, selectedText string) (*rag.QueryResult, error)

	// SessionHistory returns a session's messages oldest first.
	SessionHistory(ctx context.Context, sessionID string) ([]store.Message, error)

	// Collection reports vector collection statistics.
	Collection(ctx context.Context) (*rag.CollectionInfo, error)

	// CheckHealth probes every dependency; a nil entry means up.
	CheckHealth(ctx context.Context) map[string]error
}

// Server is the HTTP server that exposes the RAG chatbot API.
type Server struct {
	// pipeline handles all chat queries and health probes.
	pipeline chatPipeline
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds this instance's Prometheus collectors.
	metrics *serverMetrics
	// registry is the Prometheus registry served at GET /metrics.
	registry *prometheus.Registry
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Query is the user's question.
	Query string `json:"query"`
	// SessionID continues an existing conversation; empty starts a new one.
	SessionID string `json:"session_id,omitempty"`
	// SelectedText is optional text the user highlighted on the page.
	SelectedText string `json:"selected_text,omitempty"`
}

// chatResponse is the JSON response for POST /api/chat.
type chatResponse struct {
	// SessionID identifies the conversation (created if none was supplied).
	SessionID string `json:"session_id"`
	// Message is the generated (or refusal) answer.
	Message string `json:"message"`
	// Sources lists the distinct files the answer drew on, best first.
	Sources []rag.Source `json:"sources"`
	// Timestamp is when the response was produced, RFC 3339 UTC.
	Timestamp time.Time `json:"timestamp"`
}

// historyMessage is one message in the GET /api/sessions/{id}/history response.
type historyMessage struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
	// SelectedText is the page text attached to a user turn, if any.
	SelectedText string `json:"selected_text,omitempty"`
	// Timestamp is the message creation time, RFC 3339 UTC.
	Timestamp time.Time `json:"timestamp"`
}

// historyResponse is the JSON response for GET /api/sessions/{id}/history.
type historyResponse struct {
	// SessionID is the session whose history was requested.
	SessionID string `json:"session_id"`
	// Messages holds the session's turns, oldest first.
	Messages []historyMessage `json:"messages"`
}

// errorResponse is the JSON body for all non-2xx API responses.
type errorResponse struct {
	// Error is a human-readable description of what went wrong.
	Error string `json:"error"`
}
