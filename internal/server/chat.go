package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/physai-book/ragchat-go/internal/logging"
	"github.com/physai-book/ragchat-go/internal/rag"
	"github.com/physai-book/ragchat-go/internal/sanitize"
	"github.com/physai-book/ragchat-go/internal/store"
)

// Chat request outcomes recorded in metrics.
const (
	outcomeAnswered = "answered"
	outcomeRefused  = "refused"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// handleChat handles POST /api/chat. The request is sanitized and screened
// for prompt injection before the pipeline runs; rejected input never
// reaches the embedder.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.recordChat(outcomeRejected, start)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	query, err := sanitize.Query(req.Query)
	if err != nil {
		s.recordChat(outcomeRejected, start)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if sanitize.DetectPromptInjection(query) {
		log.Warn("rejected query flagged as prompt injection")
		s.recordChat(outcomeRejected, start)
		writeError(w, http.StatusBadRequest, "query contains disallowed content")
		return
	}

	if req.SessionID != "" && !sanitize.ValidSessionID(req.SessionID) {
		s.recordChat(outcomeRejected, start)
		writeError(w, http.StatusBadRequest, "session_id must be a valid UUID")
		return
	}

	selectedText := sanitize.SelectedText(req.SelectedText)

	result, err := s.pipeline.ProcessQuery(r.Context(), query, req.SessionID, selectedText)
	if err != nil {
		s.recordChat(outcomeError, start)
		status, msg := chatErrorStatus(err)
		log.Error("chat query failed", slog.Any("error", err))
		writeError(w, status, msg)
		return
	}

	outcome := outcomeAnswered
	if len(result.Sources) == 0 {
		outcome = outcomeRefused
	}
	s.recordChat(outcome, start)
	s.metrics.chatSourcesReturned.Observe(float64(len(result.Sources)))

	sources := result.Sources
	if sources == nil {
		sources = []rag.Source{}
	}
	writeJSON(w, http.StatusOK, chatResponse{
		SessionID: result.SessionID,
		Message:   result.Answer,
		Sources:   sources,
		Timestamp: time.Now().UTC(),
	})
}

// chatErrorStatus maps pipeline failures to HTTP statuses. Upstream service
// failures surface as 502 so callers can distinguish them from local faults.
func chatErrorStatus(err error) (int, string) {
	var (
		embErr *rag.EmbeddingError
		vsErr  *rag.VectorStoreError
		genErr *rag.GenerationError
		valErr *store.ValidationError
		stoErr *store.StoreError
	)
	switch {
	case errors.As(err, &embErr):
		return http.StatusBadGateway, "embedding service unavailable"
	case errors.As(err, &vsErr):
		return http.StatusBadGateway, "vector store unavailable"
	case errors.As(err, &genErr):
		return http.StatusBadGateway, "language model unavailable"
	case errors.As(err, &valErr):
		return http.StatusBadRequest, valErr.Error()
	case errors.As(err, &stoErr):
		return http.StatusInternalServerError, "conversation store failure"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// recordChat updates the chat outcome counter and duration histogram.
func (s *Server) recordChat(outcome string, start time.Time) {
	s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
