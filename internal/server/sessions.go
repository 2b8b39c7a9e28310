package server

import (
	"log/slog"
	"net/http"

	"github.com/physai-book/ragchat-go/internal/logging"
	"github.com/physai-book/ragchat-go/internal/sanitize"
)

// handleSessionHistory handles GET /api/sessions/{id}/history.
// A malformed ID is 400; a well-formed ID with no messages is 404 — the
// store itself does not distinguish unknown from empty, the API does.
func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if !sanitize.ValidSessionID(sessionID) {
		writeError(w, http.StatusBadRequest, "session id must be a valid UUID")
		return
	}

	messages, err := s.pipeline.SessionHistory(r.Context(), sessionID)
	if err != nil {
		logging.FromContext(r.Context()).Error("history lookup failed",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if len(messages) == 0 {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	resp := historyResponse{
		SessionID: sessionID,
		Messages:  make([]historyMessage, 0, len(messages)),
	}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, historyMessage{
			Role:         string(m.Role),
			Content:      m.Content,
			SelectedText: m.SelectedText,
			Timestamp:    m.CreatedAt.UTC(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
