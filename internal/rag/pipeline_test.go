package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/physai-book/ragchat-go/internal/store"
)

// fakeEmbedder returns a canned vector for any input.
type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vector, f.err
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, f.err
}

// fakeIndex returns canned search results and records nothing.
type fakeIndex struct {
	results []RetrievedChunk
	err     error
}

func (f *fakeIndex) EnsureCollection(ctx context.Context) error { return nil }
func (f *fakeIndex) Upsert(ctx context.Context, chunks []ChunkPayload, vectors [][]float32) error {
	return nil
}
func (f *fakeIndex) Search(ctx context.Context, v []float32, topK int, threshold float32) ([]RetrievedChunk, error) {
	return f.results, f.err
}
func (f *fakeIndex) DeleteCollection(ctx context.Context) error { return nil }
func (f *fakeIndex) CollectionInfo(ctx context.Context) (*CollectionInfo, error) {
	return &CollectionInfo{Name: "test", PointsCount: uint64(len(f.results)), Status: "green"}, nil
}
func (f *fakeIndex) HealthCheck(ctx context.Context) error { return nil }
func (f *fakeIndex) Close() error                          { return nil }

// fakeGenerator records whether it was invoked.
type fakeGenerator struct {
	answer string
	err    error
	called bool
}

func (f *fakeGenerator) Generate(ctx context.Context, query string, chunks []RetrievedChunk, history []store.Message, selectedText string) (string, error) {
	f.called = true
	return f.answer, f.err
}

func (f *fakeGenerator) HealthCheck(ctx context.Context) error { return nil }

// newTestPipeline assembles a pipeline over an in-memory conversation store.
func newTestPipeline(t *testing.T, idx *fakeIndex, gen *fakeGenerator) (*Pipeline, store.ConversationStore) {
	t.Helper()
	conv, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open conversation store: %v", err)
	}
	t.Cleanup(func() { _ = conv.Close() })

	emb := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}}
	return NewPipeline(emb, idx, conv, gen, 0, 0), conv
}

func chunk(title, path, text string, score float32) RetrievedChunk {
	return RetrievedChunk{Title: title, FilePath: path, ChunkText: text, TotalChunks: 1, Score: score}
}

func Test_Pipeline_AnswersWithDedupedSources(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{results: []RetrievedChunk{
		chunk("ROS2 Nodes", "ros2/nodes.md", "nodes are processes", 0.81),
		chunk("Sensors", "hardware/sensors.md", "lidar and cameras", 0.70),
		chunk("ROS2 Nodes", "ros2/nodes.md", "each node has a name", 0.65),
	}}
	gen := &fakeGenerator{answer: "A node is a process that performs computation."}
	p, _ := newTestPipeline(t, idx, gen)

	res, err := p.ProcessQuery(context.Background(), "what is a node?", "", "")
	if err != nil {
		t.Fatalf("process query: %v", err)
	}

	if !gen.called {
		t.Error("generator must be invoked when chunks are retrieved")
	}
	if res.Answer != gen.answer {
		t.Errorf("answer: want %q, got %q", gen.answer, res.Answer)
	}
	if res.SessionID == "" {
		t.Error("a session must be created when none is supplied")
	}

	// Three chunks from two files collapse to two sources, best first,
	// each carrying its file's highest score.
	if len(res.Sources) != 2 {
		t.Fatalf("want 2 deduplicated sources, got %d", len(res.Sources))
	}
	if res.Sources[0].FilePath != "ros2/nodes.md" || res.Sources[0].Score != 0.81 {
		t.Errorf("first source: %+v", res.Sources[0])
	}
	if res.Sources[1].FilePath != "hardware/sensors.md" || res.Sources[1].Score != 0.70 {
		t.Errorf("second source: %+v", res.Sources[1])
	}
	if res.Sources[0].Excerpt != "nodes are processes" {
		t.Errorf("excerpt must come from the best chunk, got %q", res.Sources[0].Excerpt)
	}
}

func Test_Pipeline_RefusesWhenNothingRetrieved(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{results: nil}
	gen := &fakeGenerator{answer: "should never be used"}
	p, _ := newTestPipeline(t, idx, gen)

	res, err := p.ProcessQuery(context.Background(), "what is the meaning of life?", "", "")
	if err != nil {
		t.Fatalf("process query: %v", err)
	}

	if gen.called {
		t.Error("generator must not be invoked on the refusal branch")
	}
	if res.Answer != refusalMessage {
		t.Errorf("want refusal message, got %q", res.Answer)
	}
	if len(res.Sources) != 0 {
		t.Errorf("refusal must carry no sources, got %d", len(res.Sources))
	}
}

func Test_Pipeline_PersistsBothTurns(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{results: []RetrievedChunk{
		chunk("ROS2 Nodes", "ros2/nodes.md", "nodes are processes", 0.9),
	}}
	gen := &fakeGenerator{answer: "an answer"}
	p, conv := newTestPipeline(t, idx, gen)

	res, err := p.ProcessQuery(context.Background(), "tell me about nodes", "", "the selected passage")
	if err != nil {
		t.Fatalf("process query: %v", err)
	}

	msgs, err := conv.History(context.Background(), res.SessionID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("want user + assistant turns persisted, got %d messages", len(msgs))
	}

	user, assistant := msgs[0], msgs[1]
	if user.Role != store.RoleUser || user.Content != "tell me about nodes" {
		t.Errorf("user turn: %s/%q", user.Role, user.Content)
	}
	if user.SelectedText != "the selected passage" {
		t.Errorf("selected text must be persisted with the user turn, got %q", user.SelectedText)
	}
	if assistant.Role != store.RoleAssistant || assistant.Content != "an answer" {
		t.Errorf("assistant turn: %s/%q", assistant.Role, assistant.Content)
	}
	if assistant.ContextUsed == nil || assistant.ContextUsed.RetrievalCount != 1 {
		t.Errorf("assistant turn must record retrieval context: %+v", assistant.ContextUsed)
	}
}

func Test_Pipeline_RefusalPersistsEmptyContext(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{results: nil}
	gen := &fakeGenerator{}
	p, conv := newTestPipeline(t, idx, gen)

	res, err := p.ProcessQuery(context.Background(), "off topic question", "", "")
	if err != nil {
		t.Fatalf("process query: %v", err)
	}

	msgs, _ := conv.History(context.Background(), res.SessionID)
	if len(msgs) != 2 {
		t.Fatalf("refusal must still persist both turns, got %d", len(msgs))
	}
	assistant := msgs[1]
	if assistant.ContextUsed == nil || assistant.ContextUsed.RetrievalCount != 0 {
		t.Errorf("refusal context must record zero retrievals: %+v", assistant.ContextUsed)
	}
}

func Test_Pipeline_ReusesSuppliedSession(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{results: []RetrievedChunk{chunk("T", "a.md", "text", 0.9)}}
	gen := &fakeGenerator{answer: "first"}
	p, conv := newTestPipeline(t, idx, gen)
	ctx := context.Background()

	res1, err := p.ProcessQuery(ctx, "first question", "", "")
	if err != nil {
		t.Fatalf("first query: %v", err)
	}
	res2, err := p.ProcessQuery(ctx, "follow-up", res1.SessionID, "")
	if err != nil {
		t.Fatalf("second query: %v", err)
	}

	if res2.SessionID != res1.SessionID {
		t.Errorf("supplied session must be reused: %s vs %s", res1.SessionID, res2.SessionID)
	}
	msgs, _ := conv.History(ctx, res1.SessionID)
	if len(msgs) != 4 {
		t.Errorf("want 4 messages across two turns, got %d", len(msgs))
	}
}

func Test_Pipeline_EmbeddingFailureIsTyped(t *testing.T) {
	t.Parallel()
	conv, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open conversation store: %v", err)
	}
	t.Cleanup(func() { _ = conv.Close() })

	p := NewPipeline(&fakeEmbedder{err: errors.New("quota exceeded")}, &fakeIndex{}, conv, &fakeGenerator{}, 0, 0)

	_, err = p.ProcessQuery(context.Background(), "anything", "", "")
	var embErr *EmbeddingError
	if !errors.As(err, &embErr) {
		t.Fatalf("want EmbeddingError, got %v", err)
	}
}

func Test_Pipeline_GenerationFailureIsTyped(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{results: []RetrievedChunk{chunk("T", "a.md", "text", 0.9)}}
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	p, _ := newTestPipeline(t, idx, gen)

	_, err := p.ProcessQuery(context.Background(), "anything", "", "")
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("want GenerationError, got %v", err)
	}
}

func Test_Pipeline_SearchFailureWrapped(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{err: &VectorStoreError{Op: "search", Err: errors.New("connection refused")}}
	gen := &fakeGenerator{}
	p, _ := newTestPipeline(t, idx, gen)

	_, err := p.ProcessQuery(context.Background(), "anything", "", "")
	var vsErr *VectorStoreError
	if !errors.As(err, &vsErr) {
		t.Fatalf("want VectorStoreError, got %v", err)
	}
}

func Test_Pipeline_ExcerptTruncated(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("a", excerptLen+100)
	idx := &fakeIndex{results: []RetrievedChunk{chunk("Long", "long.md", long, 0.9)}}
	gen := &fakeGenerator{answer: "ok"}
	p, _ := newTestPipeline(t, idx, gen)

	res, err := p.ProcessQuery(context.Background(), "q", "", "")
	if err != nil {
		t.Fatalf("process query: %v", err)
	}
	if got := len(res.Sources[0].Excerpt); got != excerptLen {
		t.Errorf("excerpt length: want %d, got %d", excerptLen, got)
	}
}

func Test_Pipeline_ExcerptTruncatesOnRuneBoundary(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("ロ", excerptLen+100)
	idx := &fakeIndex{results: []RetrievedChunk{chunk("Long", "long.md", long, 0.9)}}
	gen := &fakeGenerator{answer: "ok"}
	p, _ := newTestPipeline(t, idx, gen)

	res, err := p.ProcessQuery(context.Background(), "q", "", "")
	if err != nil {
		t.Fatalf("process query: %v", err)
	}
	got := res.Sources[0].Excerpt
	if !utf8.ValidString(got) {
		t.Error("excerpt split a multibyte rune")
	}
	if n := utf8.RuneCountInString(got); n != excerptLen {
		t.Errorf("excerpt rune count: want %d, got %d", excerptLen, n)
	}
}

func Test_Pipeline_CheckHealthCoversAllServices(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{}
	gen := &fakeGenerator{}
	p, _ := newTestPipeline(t, idx, gen)

	health := p.CheckHealth(context.Background())
	for _, svc := range []string{"vector_store", "database", "llm"} {
		if _, ok := health[svc]; !ok {
			t.Errorf("health map missing %q", svc)
		}
	}
}
