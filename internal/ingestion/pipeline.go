// Package ingestion implements the documentation indexing pipeline.
// It walks a directory of markdown files, flattens and chunks each document,
// embeds the chunks in document mode, and upserts the results into the
// vector index. The pipeline is invoked by the `ragchat ingest` CLI command.
package ingestion

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/physai-book/ragchat-go/internal/logging"
	"github.com/physai-book/ragchat-go/internal/rag"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of words per document chunk.
	// Defaults to 1000 if zero.
	ChunkSize int

	// ChunkOverlap is the number of words to overlap between consecutive
	// chunks. Defaults to 200 if zero.
	ChunkOverlap int
}

// Stats summarizes a completed ingestion run.
type Stats struct {
	// Files is the number of markdown files processed.
	Files int
	// Skipped is the number of files skipped (empty after flattening).
	Skipped int
	// Chunks is the total number of chunks embedded and upserted.
	Chunks int
}

// Pipeline orchestrates the walk → flatten → chunk → embed → upsert flow
// over a documentation directory.
type Pipeline struct {
	embedder rag.Embedder
	index    rag.VectorIndex
	cfg      *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, index rag.VectorIndex, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("ingestion: index must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = 200
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 5
	}

	return &Pipeline{
		embedder: embedder,
		index:    index,
		cfg:      cfg,
	}, nil
}

// Run ingests every markdown file under docsDir. Files are processed
// sequentially; a file that fails to embed or upsert is logged and skipped
// so one bad document never aborts a full reindex.
func (p *Pipeline) Run(ctx context.Context, docsDir string) (*Stats, error) {
	log := logging.FromContext(ctx)

	if _, err := os.Stat(docsDir); err != nil {
		return nil, fmt.Errorf("ingestion: docs directory %s: %w", docsDir, err)
	}

	if err := p.index.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("ingestion: ensure collection: %w", err)
	}

	files, err := findMarkdownFiles(docsDir)
	if err != nil {
		return nil, fmt.Errorf("ingestion: walk %s: %w", docsDir, err)
	}
	log.Info("found markdown files", slog.Int("count", len(files)), slog.String("dir", docsDir))

	stats := &Stats{}
	for _, path := range files {
		n, err := p.ingestFile(ctx, docsDir, path)
		if err != nil {
			log.Error("failed to index file", slog.String("file", path), slog.Any("error", err))
			continue
		}
		if n == 0 {
			stats.Skipped++
			continue
		}
		stats.Files++
		stats.Chunks += n
	}

	log.Info("indexing complete",
		slog.Int("files", stats.Files),
		slog.Int("skipped", stats.Skipped),
		slog.Int("chunks", stats.Chunks),
	)
	return stats, nil
}

// ingestFile flattens, chunks, embeds, and upserts one markdown file.
// It returns the number of chunks written, 0 when the file held no prose.
func (p *Pipeline) ingestFile(ctx context.Context, docsDir, path string) (int, error) {
	log := logging.FromContext(ctx)

	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}
	content := string(raw)

	fallback := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	title := TitleFromFrontmatter(content, fallback)

	text := MarkdownToText(content)
	if text == "" {
		log.Warn("skipping empty file", slog.String("file", path))
		return 0, nil
	}

	chunks := ChunkText(text, p.cfg.ChunkSize, p.cfg.ChunkOverlap)

	relPath, err := filepath.Rel(docsDir, path)
	if err != nil {
		relPath = path
	}
	relPath = filepath.ToSlash(relPath)

	payloads := make([]rag.ChunkPayload, 0, len(chunks))
	for i, chunk := range chunks {
		payloads = append(payloads, rag.ChunkPayload{
			Title:       title,
			FilePath:    relPath,
			ChunkText:   chunk,
			ChunkIndex:  i,
			TotalChunks: len(chunks),
		})
	}

	vectors, err := p.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}

	if err := p.index.Upsert(ctx, payloads, vectors); err != nil {
		return 0, fmt.Errorf("upsert: %w", err)
	}

	log.Info("indexed file", slog.String("file", relPath), slog.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// findMarkdownFiles returns all .md/.mdx files under root, sorted by path.
func findMarkdownFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".mdx":
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
