package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/physai-book/ragchat-go/internal/embedder"
	"github.com/physai-book/ragchat-go/internal/generator"
	"github.com/physai-book/ragchat-go/internal/logging"
	"github.com/physai-book/ragchat-go/internal/provider"
	"github.com/physai-book/ragchat-go/internal/rag"
	"github.com/physai-book/ragchat-go/internal/server"
	"github.com/physai-book/ragchat-go/internal/store"
	"github.com/physai-book/ragchat-go/internal/tracing"
)

// NewServeCmd constructs the `ragchat serve` command, which starts the
// chatbot HTTP API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chatbot HTTP API",
		Long: `Start the ragchat HTTP server.

The server exposes POST /api/chat for grounded question answering, session
history retrieval, health and readiness probes, and Prometheus metrics.
Run 'ragchat ingest' first to populate the vector store.

Examples:
  ragchat serve
  ragchat serve --port 9090
  MODEL_PROVIDER=ollama ragchat serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", getEnvOrDefault("MODEL_PROVIDER", "gemini")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			gen := generator.New(chatModel, getEnvInt("MAX_CONVERSATION_CONTEXT", generator.DefaultMaxHistory))

			emb, err := embedder.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise embedder: %w", err)
			}

			index, err := buildVectorIndex()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer index.Close()
			if err := index.EnsureCollection(ctx); err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			// DATABASE_URL selects Postgres; otherwise SQLite at
			// RAGCHAT_DB_PATH (default ~/.ragchat/conversations.db).
			conv, err := store.Open(ctx, getEnvOrDefault("DATABASE_URL", os.Getenv("RAGCHAT_DB_PATH")), 4)
			if err != nil {
				return fmt.Errorf("serve: failed to open conversation store: %w", err)
			}
			defer func() { _ = conv.Close() }()

			pipeline := rag.NewPipeline(emb, index, conv, gen,
				getEnvInt("RETRIEVAL_TOP_K", rag.DefaultTopK),
				float32(getEnvFloat("RETRIEVAL_SCORE_THRESHOLD", float64(rag.DefaultScoreThreshold))),
			)

			// Readiness probes cover the stores by default; the LLM probe
			// spends tokens on every poll, so it is opt-in.
			pingers := []server.Pinger{
				server.NewVectorIndexPinger(index),
				server.NewStorePinger(conv),
			}
			if os.Getenv("READY_CHECK_LLM") == "true" {
				pingers = append(pingers, server.NewGeneratorPinger(gen))
			}

			srv, err := server.New(pipeline, &server.Config{
				Host:        host,
				Port:        port,
				Logger:      log,
				Pingers:     pingers,
				RateLimit:   getEnvFloat("RATE_LIMIT", 0),
				RateBurst:   getEnvInt("RATE_BURST", 0),
				APIKey:      os.Getenv("RAGCHAT_API_KEY"),
				CORSOrigins: splitOrigins(os.Getenv("CORS_ORIGINS")),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
