package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newImpactCommand() *cobra.Command {
	var (
		edgeKinds []string
		risk      bool
	)

	cmd := &cobra.Command{
		Use:   "impact <node>",
		Short: "Show everything downstream of a node (what might break)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := openExistingService()
			if err != nil {
				return err
			}
			defer service.Store().Close()

			analyzer := service.Analyzer()

			if risk {
				assessment, err := analyzer.RiskOf(args[0], 0)
				if err != nil {
					return err
				}
				if outputFormat == "json" {
					return printJSON(assessment)
				}
				fmt.Printf("%s: %s (score %.1f)\n", assessment.NodeID, riskColor(string(assessment.Level)), assessment.Score)
				fmt.Printf("  direct callers:        %d\n", assessment.DirectCallers)
				fmt.Printf("  transitive dependents: %d\n", assessment.TransitiveDependents)
				return nil
			}

			ids, err := analyzer.ImpactOf(args[0], edgeKinds)
			if err != nil {
				return err
			}

			if outputFormat == "json" {
				return printJSON(ids)
			}
			printIDList(args[0], "impacts", ids)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&edgeKinds, "edges", "e", nil, "restrict to edge kinds")
	cmd.Flags().BoolVar(&risk, "risk", false, "score change risk instead of listing nodes")
	return cmd
}

func newAncestorsCommand() *cobra.Command {
	var edgeKinds []string

	cmd := &cobra.Command{
		Use:   "ancestors <node>",
		Short: "Show everything upstream of a node (what it depends on)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := openExistingService()
			if err != nil {
				return err
			}
			defer service.Store().Close()

			ids, err := service.Analyzer().AncestorsOf(args[0], edgeKinds)
			if err != nil {
				return err
			}

			if outputFormat == "json" {
				return printJSON(ids)
			}
			printIDList(args[0], "is reachable from", ids)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&edgeKinds, "edges", "e", nil, "restrict to edge kinds")
	return cmd
}

func printIDList(target, verb string, ids []string) {
	if len(ids) == 0 {
		fmt.Println(color.New(color.Faint).Sprint("No nodes found."))
		return
	}
	fmt.Printf("%s %s %d node(s):\n", color.CyanString(target), verb, len(ids))
	for _, id := range ids {
		fmt.Printf("  %s\n", id)
	}
}

func riskColor(level string) string {
	switch level {
	case "CRITICAL":
		return color.New(color.FgRed, color.Bold).Sprint(level)
	case "HIGH":
		return color.RedString(level)
	case "MEDIUM":
		return color.YellowString(level)
	default:
		return color.GreenString(level)
	}
}
