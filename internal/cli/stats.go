package cli

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the indexed graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := openExistingService()
			if err != nil {
				return err
			}
			defer service.Store().Close()

			stats, err := service.Store().Stats()
			if err != nil {
				return err
			}

			if outputFormat == "json" {
				return printJSON(stats)
			}

			fmt.Printf("%s %s\n", color.New(color.Bold).Sprint("Database:"), service.Store().Path())
			fmt.Printf("Nodes: %d\n", stats.NodeCount)
			for _, kind := range sortedCountKeys(stats.NodeKinds) {
				fmt.Printf("  %-10s %d\n", kind, stats.NodeKinds[kind])
			}
			fmt.Printf("Edges: %d\n", stats.EdgeCount)
			for _, kind := range sortedCountKeys(stats.EdgeKinds) {
				fmt.Printf("  %-10s %d\n", kind, stats.EdgeKinds[kind])
			}
			return nil
		},
	}
}

func sortedCountKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
