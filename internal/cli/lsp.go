package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlscope/internal/lsp"
)

// NewLSPCommand creates the lsp command.
func NewLSPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server",
		Long: `Start the LSP server for IDE integration.

The server communicates over stdin/stdout using JSON-RPC and analyzes
documents with the configured dialect and catalog connection.`,
		Example: `  # Start LSP server (usually called by an IDE)
  sqlscope lsp`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd)
			logger := loggerFrom(cmd)

			eng, cleanup, err := newEngine(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			server := lsp.NewServerWithLogger(os.Stdin, os.Stdout, eng, cfg.Dialect, logger)
			return server.Run()
		},
	}
}
