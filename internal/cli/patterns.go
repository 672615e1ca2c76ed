package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/0ximu/mu/internal/analysis"
)

func newPatternsCommand() *cobra.Command {
	var (
		category string
		examples bool
	)

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Detect naming, architecture and testing conventions",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := openExistingService()
			if err != nil {
				return err
			}
			defer service.Store().Close()

			report, err := analysis.ScanPatterns(service.Store(), category, examples)
			if err != nil {
				return err
			}

			if outputFormat == "json" {
				return printJSON(report)
			}

			if len(report.Patterns) == 0 {
				fmt.Println(color.New(color.Faint).Sprint("No patterns detected."))
				return nil
			}

			fmt.Printf("Analyzed %d nodes across %s\n\n",
				report.NodesAnalyzed, strings.Join(report.CategoriesAnalyzed, ", "))
			for _, p := range report.Patterns {
				fmt.Printf("%s %s [%s] %s %.0f%% (%d)\n",
					confidenceBar(p.Confidence),
					color.New(color.Bold).Sprint(p.Name),
					p.Category,
					p.Description,
					p.Confidence*100,
					p.Occurrences)
				if len(p.Examples) > 0 {
					fmt.Printf("      e.g. %s\n", strings.Join(p.Examples, ", "))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "restrict to one category")
	cmd.Flags().BoolVar(&examples, "examples", false, "include example names")
	return cmd
}

func confidenceBar(confidence float64) string {
	filled := int(confidence*5 + 0.5)
	if filled > 5 {
		filled = 5
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", 5-filled)
}
