package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/0ximu/mu/internal/analysis"
)

func newDepsCommand() *cobra.Command {
	var (
		reverse         bool
		depth           int
		includeContains bool
	)

	cmd := &cobra.Command{
		Use:   "deps <node>",
		Short: "Show what a node depends on (or what depends on it)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := openExistingService()
			if err != nil {
				return err
			}
			defer service.Store().Close()

			analyzer := service.Analyzer()
			opts := analysis.DepOptions{Depth: depth, IncludeContains: includeContains}

			var deps []analysis.Dependency
			if reverse {
				deps, err = analyzer.DependentsOf(args[0], opts)
			} else {
				deps, err = analyzer.DependenciesOf(args[0], opts)
			}
			if err != nil {
				return err
			}

			if outputFormat == "json" {
				return printJSON(deps)
			}

			if len(deps) == 0 {
				fmt.Println(color.New(color.Faint).Sprint("No dependencies found."))
				return nil
			}
			direction := "depends on"
			if reverse {
				direction = "is depended on by"
			}
			fmt.Printf("%s %s:\n", color.CyanString(args[0]), direction)
			for _, dep := range deps {
				fmt.Printf("  %s%s\n", indent(dep.Depth), dep.ID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&reverse, "reverse", "r", false, "show dependents instead of dependencies")
	cmd.Flags().IntVarP(&depth, "depth", "d", 2, "traversal depth")
	cmd.Flags().BoolVar(&includeContains, "include-contains", false, "include structural containment edges")
	return cmd
}

func indent(depth int) string {
	s := ""
	for i := 1; i < depth; i++ {
		s += "  "
	}
	return s
}
