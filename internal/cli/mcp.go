package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0ximu/mu/internal/mcp"
)

func newMCPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the code graph over the Model Context Protocol (stdio)",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := openExistingService()
			if err != nil {
				return err
			}
			defer service.Store().Close()

			// Logs go to stderr; stdout belongs to the protocol.
			logger, err := newLogger("warn")
			if err != nil {
				logger = zap.NewNop()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return mcp.NewServer(service, logger).ServeStdio(ctx)
		},
	}
}
