package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/physai-book/ragchat-go/internal/embedder"
	"github.com/physai-book/ragchat-go/internal/ingestion"
	"github.com/physai-book/ragchat-go/internal/logging"
)

// NewIngestCmd constructs the `ragchat ingest` command, which indexes the
// book's markdown sources into the Qdrant vector store.
func NewIngestCmd() *cobra.Command {
	var docsDir string
	var reindex bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index the book's markdown content into the vector store",
		Long: `Walk a directory of markdown chapters, chunk them, embed each chunk,
and upsert the vectors into Qdrant.

Each .md/.mdx file is flattened to plain text (code blocks dropped, link text
kept), split into overlapping word windows, and embedded in one batch per
file. Files that fail are logged and skipped; the run continues.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: physai_book)
  GEMINI_API_KEY       API key for the default Gemini embedding backend
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  ragchat ingest --docs-dir ./book/docs
  ragchat ingest --docs-dir ./book/docs --reindex
  CHUNK_SIZE=500 ragchat ingest --docs-dir ./book/docs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			if docsDir == "" {
				return fmt.Errorf("ingest: --docs-dir is required")
			}

			if err := embedder.ValidateForRAG(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			emb, err := embedder.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised",
				slog.String("provider", getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "gemini"))),
			)

			index, err := buildVectorIndex()
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer index.Close()

			if reindex {
				log.Info("reindex requested, dropping existing collection")
				if err := index.DeleteCollection(ctx); err != nil {
					return fmt.Errorf("ingest: failed to drop collection: %w", err)
				}
			}

			pipeline, err := ingestion.NewPipeline(emb, index, &ingestion.Config{
				ChunkSize:    getEnvInt("CHUNK_SIZE", 0),
				ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 0),
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			stats, err := pipeline.Run(ctx, docsDir)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("ingestion complete",
				slog.Int("files", stats.Files),
				slog.Int("skipped", stats.Skipped),
				slog.Int("chunks", stats.Chunks),
			)

			info, err := index.CollectionInfo(ctx)
			if err == nil {
				log.Info("collection state",
					slog.String("collection", info.Name),
					slog.Uint64("points", info.PointsCount),
				)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&docsDir, "docs-dir", "d", "", "Directory containing the book's markdown sources")
	cmd.Flags().BoolVar(&reindex, "reindex", false, "Drop and recreate the collection before indexing")

	return cmd
}
