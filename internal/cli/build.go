package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/0ximu/mu/internal/index"
)

// barReporter adapts a terminal progress bar to the build pipeline.
type barReporter struct {
	bar *progressbar.ProgressBar
}

func (r *barReporter) OnBuildStart(totalFiles int) {
	r.bar = progressbar.NewOptions(totalFiles,
		progressbar.OptionSetDescription("indexing"),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionShowCount(),
	)
}

func (r *barReporter) OnFileProcessed(processed, total int, fileName string) {
	if r.bar != nil {
		_ = r.bar.Add(1)
	}
}

func (r *barReporter) OnBuildComplete(nodeCount, edgeCount int, duration time.Duration) {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

func newBuildCommand() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Index the repository from scratch",
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []index.Option
			if !quiet {
				opts = append(opts, index.WithProgress(&barReporter{}))
			}

			service, _, err := openService(opts...)
			if err != nil {
				return err
			}
			defer service.Store().Close()

			result, err := service.Build(cmd.Context())
			if err != nil {
				return err
			}

			if outputFormat == "json" {
				return printJSON(result)
			}

			fmt.Printf("%s %d files, %d nodes, %d edges in %s\n",
				color.GreenString("Indexed"),
				result.FileCount, result.NodeCount, result.EdgeCount,
				result.Duration.Round(time.Millisecond))
			fmt.Printf("Call sites: %d seen, %d resolved\n",
				result.CallSitesSeen, result.CallSitesResolved)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress the progress bar")
	return cmd
}
