// Package generator produces grounded answers from retrieved book chunks
// using an Eino chat model. The model is injected, so any backend the
// provider package can construct works here.
package generator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/physai-book/ragchat-go/internal/logging"
	"github.com/physai-book/ragchat-go/internal/rag"
	"github.com/physai-book/ragchat-go/internal/store"
)

// DefaultMaxHistory is how many prior messages are replayed to the model.
const DefaultMaxHistory = 6

// GroundedGenerator implements rag.Generator on top of an Eino ChatModel.
// It is safe for concurrent use.
type GroundedGenerator struct {
	chatModel  model.ToolCallingChatModel
	maxHistory int
}

// New constructs a GroundedGenerator. maxHistory <= 0 selects the default.
func New(chatModel model.ToolCallingChatModel, maxHistory int) *GroundedGenerator {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &GroundedGenerator{
		chatModel:  chatModel,
		maxHistory: maxHistory,
	}
}

// Generate produces an answer to query grounded in the retrieved chunks.
// Prior turns (truncated to the most recent maxHistory messages) and the
// optional selected page text are folded into the conversation.
func (g *GroundedGenerator) Generate(ctx context.Context, query string, chunks []rag.RetrievedChunk, history []store.Message, selectedText string) (string, error) {
	messages := buildMessages(query, chunks, history, selectedText, g.maxHistory)

	resp, err := g.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate response: %w", err)
	}
	if resp == nil || resp.Content == "" {
		return "", fmt.Errorf("generate response: model returned empty content")
	}

	logging.FromContext(ctx).Debug("generated response",
		slog.Int("length", len(resp.Content)),
		slog.Int("context_chunks", len(chunks)),
	)
	return resp.Content, nil
}

// HealthCheck sends a minimal request to confirm the backend is reachable
// and the credentials are valid.
func (g *GroundedGenerator) HealthCheck(ctx context.Context) error {
	resp, err := g.chatModel.Generate(ctx, []*schema.Message{schema.UserMessage("test")})
	if err != nil {
		return fmt.Errorf("llm health check: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("llm health check: empty response")
	}
	return nil
}

// buildMessages assembles the model input: grounding system prompt, trimmed
// history, then the current query (with selected text prepended when set).
func buildMessages(query string, chunks []rag.RetrievedChunk, history []store.Message, selectedText string, maxHistory int) []*schema.Message {
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}

	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(buildSystemPrompt(chunks)))

	for _, m := range history {
		switch m.Role {
		case store.RoleUser:
			messages = append(messages, schema.UserMessage(m.Content))
		case store.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(m.Content, nil))
		}
	}

	userTurn := query
	if selectedText != "" {
		userTurn = fmt.Sprintf("Selected text from page: %q\n\nQuestion: %s", selectedText, query)
	}
	messages = append(messages, schema.UserMessage(userTurn))

	return messages
}
