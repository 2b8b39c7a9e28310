package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds the connection and collection settings for a
// QdrantIndex.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string
	// Port is the Qdrant gRPC port (typically 6334).
	Port int
	// Collection is the name of the collection holding book chunks.
	Collection string
	// VectorSize is the dimensionality of stored vectors. It must match
	// the embedder's output dimension.
	VectorSize uint64
	// APIKey is an optional API key for Qdrant Cloud.
	APIKey string
	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex stores and searches embedded document chunks in a Qdrant
// collection. It implements VectorIndex.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	vectorSize uint64
}

// NewQdrantIndex connects to Qdrant. It does not create the collection;
// call EnsureCollection before the first upsert.
func NewQdrantIndex(cfg *QdrantConfig) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, &VectorStoreError{Op: "connect", Err: err}
	}
	return &QdrantIndex{
		client:     client,
		collection: cfg.Collection,
		vectorSize: cfg.VectorSize,
	}, nil
}

// EnsureCollection creates the collection with cosine distance if it does
// not already exist. Existing collections are left untouched.
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return &VectorStoreError{Op: "collection exists", Err: err}
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return &VectorStoreError{Op: "create collection", Err: err}
	}
	return nil
}

// Upsert writes chunks with their vectors into the collection. Each point
// gets a fresh UUID, so re-ingesting the same document adds new points
// rather than overwriting; use DeleteCollection first for a clean reindex.
func (q *QdrantIndex) Upsert(ctx context.Context, chunks []ChunkPayload, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return &VectorStoreError{
			Op:  "upsert",
			Err: fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors)),
		}
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, c := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.NewString()),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"title":        c.Title,
				"file_path":    c.FilePath,
				"chunk_text":   c.ChunkText,
				"chunk_index":  c.ChunkIndex,
				"total_chunks": c.TotalChunks,
			}),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         points,
	})
	if err != nil {
		return &VectorStoreError{Op: "upsert", Err: err}
	}
	return nil
}

// Search returns up to topK chunks whose cosine similarity to queryVector
// meets scoreThreshold, best first.
func (q *QdrantIndex) Search(ctx context.Context, queryVector []float32, topK int, scoreThreshold float32) ([]RetrievedChunk, error) {
	limit := uint64(topK)
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          &limit,
		ScoreThreshold: &scoreThreshold,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, &VectorStoreError{Op: "search", Err: err}
	}

	chunks := make([]RetrievedChunk, 0, len(results))
	for _, point := range results {
		payload := point.GetPayload()
		chunks = append(chunks, RetrievedChunk{
			Title:       payload["title"].GetStringValue(),
			FilePath:    payload["file_path"].GetStringValue(),
			ChunkText:   payload["chunk_text"].GetStringValue(),
			ChunkIndex:  int(payload["chunk_index"].GetIntegerValue()),
			TotalChunks: int(payload["total_chunks"].GetIntegerValue()),
			Score:       point.GetScore(),
		})
	}
	return chunks, nil
}

// DeleteCollection drops the collection and all points in it.
func (q *QdrantIndex) DeleteCollection(ctx context.Context) error {
	if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
		return &VectorStoreError{Op: "delete collection", Err: err}
	}
	return nil
}

// CollectionInfo reports the collection's point count and status.
func (q *QdrantIndex) CollectionInfo(ctx context.Context) (*CollectionInfo, error) {
	info, err := q.client.GetCollectionInfo(ctx, q.collection)
	if err != nil {
		return nil, &VectorStoreError{Op: "collection info", Err: err}
	}
	return &CollectionInfo{
		Name:        q.collection,
		PointsCount: info.GetPointsCount(),
		Status:      info.GetStatus().String(),
	}, nil
}

// HealthCheck verifies the Qdrant server is reachable.
func (q *QdrantIndex) HealthCheck(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return &VectorStoreError{Op: "health check", Err: err}
	}
	return nil
}

// Close releases the gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
