// Package rag defines the capability interfaces for the retrieval-augmented
// generation pipeline — embedding, vector search, and grounded answer
// generation — along with the pipeline that composes them.
// Concrete implementations (Gemini, Qdrant, etc.) satisfy these interfaces so
// the pipeline never depends on a specific backend.
package rag

import (
	"context"

	"github.com/physai-book/ragchat-go/internal/store"
)

// ChunkPayload is the metadata stored alongside each vector in the index.
// It is produced by the ingestion pipeline and read back during retrieval.
type ChunkPayload struct {
	// Title is the document title (from markdown frontmatter).
	Title string

	// FilePath is the source file path relative to the docs root.
	FilePath string

	// ChunkText is the raw text content of the chunk.
	ChunkText string

	// ChunkIndex is the zero-based position of this chunk within its document.
	ChunkIndex int

	// TotalChunks is the number of chunks the source document was split into.
	TotalChunks int
}

// RetrievedChunk is a chunk returned by a similarity search, scored against
// the query. It exists only within one query's processing.
type RetrievedChunk struct {
	// Title is the document title.
	Title string

	// FilePath is the source file path relative to the docs root.
	FilePath string

	// ChunkText is the raw text content of the chunk.
	ChunkText string

	// ChunkIndex is the zero-based position of this chunk within its document.
	ChunkIndex int

	// TotalChunks is the number of chunks the source document was split into.
	TotalChunks int

	// Score is the cosine similarity against the query vector, in [0, 1].
	Score float32
}

// Source is a citation attached to an answer: one per distinct source file,
// deduplicated from the retrieved chunks.
type Source struct {
	// Title is the document title.
	Title string `json:"title"`

	// FilePath is the source file path relative to the docs root.
	FilePath string `json:"file_path"`

	// Score is the relevance score of the best chunk from this file.
	Score float32 `json:"relevance_score"`

	// Excerpt is the leading text of the best chunk, truncated to 500 chars.
	Excerpt string `json:"excerpt"`
}

// Embedder is the interface for converting text into dense vector embeddings.
// Query-time and index-time encodings are distinct: single-text Embed must
// request query-mode encoding and EmbedBatch document-mode encoding, because
// cross-mode embeddings are not directly comparable.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a single query text into its embedding, encoded for
	// retrieval-query semantics.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts a batch of document texts into their embeddings,
	// encoded for retrieval-document semantics. The returned slice is
	// parallel to the input slice.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex is the interface for persisting and searching chunk embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorIndex interface {
	// EnsureCollection creates the backing collection if it does not exist.
	// It is idempotent and safe to call concurrently at startup.
	EnsureCollection(ctx context.Context) error

	// Upsert stores a batch of chunks with their pre-computed embeddings.
	// vectors must be parallel to chunks — vectors[i] is the embedding of
	// chunks[i]. Each chunk is assigned a fresh unique point ID.
	Upsert(ctx context.Context, chunks []ChunkPayload, vectors [][]float32) error

	// Search returns at most topK chunks with similarity >= scoreThreshold,
	// ordered by similarity descending. An empty result is not an error.
	Search(ctx context.Context, queryVector []float32, topK int, scoreThreshold float32) ([]RetrievedChunk, error)

	// DeleteCollection drops the backing collection and all its points.
	DeleteCollection(ctx context.Context) error

	// CollectionInfo returns point counts and status for the collection.
	CollectionInfo(ctx context.Context) (*CollectionInfo, error)

	// HealthCheck reports whether the index is reachable. It never mutates.
	HealthCheck(ctx context.Context) error

	// Close releases any resources held by the index.
	Close() error
}

// CollectionInfo holds administrative statistics for a vector collection.
type CollectionInfo struct {
	// Name is the collection name.
	Name string `json:"name"`

	// PointsCount is the number of points currently stored.
	PointsCount uint64 `json:"points_count"`

	// Status is the backend-reported collection status (e.g. "green").
	Status string `json:"status"`
}

// Generator is the interface for producing a grounded answer from retrieved
// context and prior conversation turns.
// Implementations must be safe to call from multiple goroutines.
type Generator interface {
	// Generate produces an answer to query grounded in chunks, with history
	// supplying prior turns and selectedText optional per-query page context.
	// chunks must be non-empty — the pipeline never invokes the generator
	// with zero context.
	Generate(ctx context.Context, query string, chunks []RetrievedChunk, history []store.Message, selectedText string) (string, error)

	// HealthCheck reports whether the generation backend is reachable.
	HealthCheck(ctx context.Context) error
}
