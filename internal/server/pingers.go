package server

import (
	"context"
	"fmt"

	"github.com/physai-book/ragchat-go/internal/rag"
	"github.com/physai-book/ragchat-go/internal/store"
)

// VectorIndexPinger probes the vector index via its native health check.
// It satisfies the Pinger interface and is used by GET /api/ready.
type VectorIndexPinger struct {
	index rag.VectorIndex
}

// NewVectorIndexPinger constructs a VectorIndexPinger for the given index.
func NewVectorIndexPinger(index rag.VectorIndex) *VectorIndexPinger {
	return &VectorIndexPinger{index: index}
}

// Name returns the dependency label used in readiness responses.
func (p *VectorIndexPinger) Name() string { return "qdrant" }

// Ping delegates to the index's health check.
func (p *VectorIndexPinger) Ping(ctx context.Context) error {
	if err := p.index.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// StorePinger probes the conversation store with a lightweight query.
type StorePinger struct {
	store store.ConversationStore
}

// NewStorePinger constructs a StorePinger for the given store.
func NewStorePinger(s store.ConversationStore) *StorePinger {
	return &StorePinger{store: s}
}

// Name returns the dependency label used in readiness responses.
func (p *StorePinger) Name() string { return "database" }

// Ping delegates to the store's health check.
func (p *StorePinger) Ping(ctx context.Context) error {
	if err := p.store.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// GeneratorPinger probes the LLM backend. Each probe issues a minimal
// generate request, which consumes tokens — register it on /api/ready only
// when that cost is acceptable for the polling interval in use.
type GeneratorPinger struct {
	generator rag.Generator
}

// NewGeneratorPinger constructs a GeneratorPinger for the given generator.
func NewGeneratorPinger(g rag.Generator) *GeneratorPinger {
	return &GeneratorPinger{generator: g}
}

// Name returns the dependency label used in readiness responses.
func (p *GeneratorPinger) Name() string { return "llm" }

// Ping delegates to the generator's health check.
func (p *GeneratorPinger) Ping(ctx context.Context) error {
	if err := p.generator.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
