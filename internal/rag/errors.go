package rag

import "fmt"

// EmbeddingError wraps any failure from the embedding backend. Embedding
// failures are never retried locally — they propagate to the caller.
type EmbeddingError struct {
	// Err is the underlying provider error.
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// VectorStoreError wraps any failure from the vector index backend.
// Partial or corrupt result sets are never returned silently — any provider
// error surfaces as this type.
type VectorStoreError struct {
	// Op is the operation that failed (e.g. "search", "upsert").
	Op string
	// Err is the underlying provider error.
	Err error
}

func (e *VectorStoreError) Error() string {
	return fmt.Sprintf("vector store %s failed: %v", e.Op, e.Err)
}

func (e *VectorStoreError) Unwrap() error { return e.Err }

// GenerationError wraps any failure from the answer-generation backend.
// The pipeline never substitutes fallback text for a generation failure.
type GenerationError struct {
	// Err is the underlying provider error.
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("answer generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
