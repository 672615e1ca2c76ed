package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newPathCommand() *cobra.Command {
	var edgeKinds []string

	cmd := &cobra.Command{
		Use:   "path <from> <to>",
		Short: "Find the shortest path between two nodes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := openExistingService()
			if err != nil {
				return err
			}
			defer service.Store().Close()

			path, err := service.Analyzer().PathBetween(args[0], args[1], edgeKinds)
			if err != nil {
				return err
			}

			if outputFormat == "json" {
				return printJSON(path)
			}

			if path == nil {
				fmt.Printf("No path from %s to %s.\n", args[0], args[1])
				return nil
			}
			for i, id := range path {
				if i == 0 {
					fmt.Printf("%s\n", color.CyanString(id))
				} else {
					fmt.Printf("%s-> %s\n", indent(i), id)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&edgeKinds, "edges", "e", nil, "restrict to edge kinds")
	return cmd
}
