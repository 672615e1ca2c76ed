package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/0ximu/mu/internal/index"
)

func newWatchCommand() *cobra.Command {
	var buildFirst bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the repository and apply incremental updates",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, _, err := openService()
			if err != nil {
				return err
			}
			defer service.Store().Close()

			if buildFirst {
				if _, err := service.Build(cmd.Context()); err != nil {
					return err
				}
			}

			logger, err := newLogger("info")
			if err != nil {
				return err
			}

			watcher, err := index.NewWatcher(service, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Printf("%s %s (ctrl-c to stop)\n", color.GreenString("Watching"), service.Root())
			err = watcher.Run(ctx)
			if err != nil && ctx.Err() != nil {
				return nil // clean shutdown
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&buildFirst, "build", true, "run a full build before watching")
	return cmd
}
