package rag

import (
	"context"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/physai-book/ragchat-go/internal/logging"
	"github.com/physai-book/ragchat-go/internal/store"
)

// refusalMessage is the fixed answer returned when retrieval finds nothing
// above the score threshold. The generator is never consulted in that case.
const refusalMessage = "I don't have information about that in the documentation. " +
	"I can only answer questions about Physical AI, robotics, ROS2, and related topics covered in this book."

// excerptLen caps the excerpt carried by each source citation.
const excerptLen = 500

// Default retrieval parameters.
const (
	DefaultTopK           = 5
	DefaultScoreThreshold = 0.6
)

// Pipeline orchestrates one query end to end: session resolution, history
// load, embedding, vector search, grounded generation (or refusal), and
// persistence of both turns.
type Pipeline struct {
	embedder  Embedder
	index     VectorIndex
	conv      store.ConversationStore
	generator Generator

	topK           int
	scoreThreshold float32
}

// NewPipeline wires the pipeline from its four capabilities. Zero topK or
// scoreThreshold fall back to the defaults.
func NewPipeline(embedder Embedder, index VectorIndex, conv store.ConversationStore, generator Generator, topK int, scoreThreshold float32) *Pipeline {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if scoreThreshold <= 0 {
		scoreThreshold = DefaultScoreThreshold
	}
	return &Pipeline{
		embedder:       embedder,
		index:          index,
		conv:           conv,
		generator:      generator,
		topK:           topK,
		scoreThreshold: scoreThreshold,
	}
}

// QueryResult is the outcome of one processed query.
type QueryResult struct {
	// Answer is the generated (or refusal) text.
	Answer string

	// Sources lists the distinct files the answer drew on, best first.
	// Empty on the refusal branch.
	Sources []Source

	// SessionID identifies the conversation, created if none was supplied.
	SessionID string
}

// ProcessQuery runs the full pipeline for one user query. An empty sessionID
// starts a new conversation. selectedText, when non-empty, is page text the
// user highlighted and is passed through to generation and persistence.
//
// Both the user turn and the assistant turn are persisted, on the refusal
// branch included, so history always reflects what the user saw.
func (p *Pipeline) ProcessQuery(ctx context.Context, query, sessionID, selectedText string) (*QueryResult, error) {
	log := logging.FromContext(ctx)

	if sessionID == "" {
		id, err := p.conv.CreateSession(ctx)
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		sessionID = id
		log.Debug("created session", "session_id", sessionID)
	}

	history, err := p.conv.History(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	queryVector, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &EmbeddingError{Err: err}
	}

	chunks, err := p.index.Search(ctx, queryVector, p.topK, p.scoreThreshold)
	if err != nil {
		return nil, err
	}

	var (
		answer  string
		sources []Source
		used    *store.ContextUsed
	)
	if len(chunks) == 0 {
		log.Info("no relevant chunks, refusing", "session_id", sessionID)
		answer = refusalMessage
		used = &store.ContextUsed{Chunks: []store.ChunkRef{}, RetrievalCount: 0}
	} else {
		answer, err = p.generator.Generate(ctx, query, chunks, history, selectedText)
		if err != nil {
			return nil, &GenerationError{Err: err}
		}
		sources = dedupSources(chunks)
		used = contextUsed(chunks)
		log.Info("answered query",
			"session_id", sessionID,
			"retrieved", len(chunks),
			"sources", len(sources))
	}

	if _, err := p.conv.SaveMessage(ctx, sessionID, store.RoleUser, query, selectedText, nil); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}
	if _, err := p.conv.SaveMessage(ctx, sessionID, store.RoleAssistant, answer, "", used); err != nil {
		return nil, fmt.Errorf("save assistant message: %w", err)
	}

	return &QueryResult{
		Answer:    answer,
		Sources:   sources,
		SessionID: sessionID,
	}, nil
}

// SessionHistory returns a session's messages oldest first. An unknown
// session yields an empty slice; callers decide whether that is an error.
func (p *Pipeline) SessionHistory(ctx context.Context, sessionID string) ([]store.Message, error) {
	return p.conv.History(ctx, sessionID)
}

// Collection reports statistics for the backing vector collection.
func (p *Pipeline) Collection(ctx context.Context) (*CollectionInfo, error) {
	return p.index.CollectionInfo(ctx)
}

// CheckHealth probes every dependency and reports per-service status.
// A nil map entry error means the service is up.
func (p *Pipeline) CheckHealth(ctx context.Context) map[string]error {
	return map[string]error{
		"vector_store": p.index.HealthCheck(ctx),
		"database":     p.conv.HealthCheck(ctx),
		"llm":          p.generator.HealthCheck(ctx),
	}
}

// dedupSources collapses retrieved chunks to one source per distinct file,
// keeping each file's best-scoring chunk, sorted by score descending.
func dedupSources(chunks []RetrievedChunk) []Source {
	best := make(map[string]RetrievedChunk, len(chunks))
	for _, c := range chunks {
		if cur, ok := best[c.FilePath]; !ok || c.Score > cur.Score {
			best[c.FilePath] = c
		}
	}

	sources := make([]Source, 0, len(best))
	for _, c := range best {
		sources = append(sources, Source{
			Title:    c.Title,
			FilePath: c.FilePath,
			Score:    c.Score,
			Excerpt:  excerpt(c.ChunkText),
		})
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Score > sources[j].Score })
	return sources
}

// contextUsed records which chunks grounded the answer, for persistence.
func contextUsed(chunks []RetrievedChunk) *store.ContextUsed {
	refs := make([]store.ChunkRef, 0, len(chunks))
	for _, c := range chunks {
		refs = append(refs, store.ChunkRef{
			Title:          c.Title,
			FilePath:       c.FilePath,
			RelevanceScore: c.Score,
		})
	}
	return &store.ContextUsed{Chunks: refs, RetrievalCount: len(chunks)}
}

// excerpt truncates chunk text to excerptLen characters, never splitting a
// multibyte rune.
func excerpt(text string) string {
	if utf8.RuneCountInString(text) <= excerptLen {
		return text
	}
	runes := []rune(text)
	return string(runes[:excerptLen])
}
