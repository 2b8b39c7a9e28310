// Package commands defines all Cobra CLI commands for the ragchat binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/physai-book/ragchat-go/internal/audit"
	"github.com/physai-book/ragchat-go/internal/config"
	"github.com/physai-book/ragchat-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragchat",
		Short: "RAG chatbot backend for the Physical AI book",
		Long: `ragchat serves a retrieval-augmented chatbot over the Physical AI book.

It answers reader questions strictly from the book's content: questions are
embedded, matched against indexed chapter chunks in Qdrant, and answered by
an LLM grounded in the retrieved passages. Questions the book does not cover
are refused rather than guessed at.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.ragchat/config.yaml).
See 'ragchat --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A local .env is a development convenience; absence is fine.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragchat/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewVersionCmd(),
	)

	return root
}
