package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newCyclesCommand() *cobra.Command {
	var edgeKinds []string

	cmd := &cobra.Command{
		Use:   "cycles",
		Short: "Find circular dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := openExistingService()
			if err != nil {
				return err
			}
			defer service.Store().Close()

			cycles, err := service.Analyzer().Cycles(edgeKinds)
			if err != nil {
				return err
			}

			if outputFormat == "json" {
				return printJSON(cycles)
			}

			if len(cycles) == 0 {
				fmt.Println(color.GreenString("No cycles found."))
				return nil
			}

			fmt.Printf("%s %d cycle(s):\n", color.RedString("Found"), len(cycles))
			for i, cycle := range cycles {
				fmt.Printf("  %d. [%d nodes] %s\n", i+1, len(cycle), strings.Join(cycle, " -> "))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&edgeKinds, "edges", "e", nil, "restrict to edge kinds (imports, calls, inherits, uses)")
	return cmd
}
