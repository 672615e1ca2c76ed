package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/0ximu/mu/internal/analysis"
	"github.com/0ximu/mu/internal/extract"
	"github.com/0ximu/mu/internal/scanner"
)

func newDiffCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <base-dir> <head-dir>",
		Short: "Semantic diff between two source trees",
		Long: `Parse two source trees and report entity-level changes: added, removed
and modified modules, classes, functions, methods, parameters, attributes
and imports, with breaking-change flags.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := parseTree(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("parse base tree: %w", err)
			}
			head, err := parseTree(cmd.Context(), args[1])
			if err != nil {
				return fmt.Errorf("parse head tree: %w", err)
			}

			result := analysis.SemanticDiff(base, head)

			if outputFormat == "json" {
				return printJSON(result)
			}

			if len(result.Changes) == 0 {
				fmt.Println(color.GreenString("No semantic changes."))
				return nil
			}

			for _, change := range result.Changes {
				marker := " "
				if change.Breaking {
					marker = color.RedString("!")
				}
				name := change.Name
				if change.ParentName != "" {
					name = change.ParentName + "." + name
				}
				fmt.Printf("%s %-8s %-9s %s (%s)\n",
					marker, change.Type, change.Entity, name, change.FilePath)
				if change.OldSignature != "" || change.NewSignature != "" {
					fmt.Printf("    %s -> %s\n", orDash(change.OldSignature), orDash(change.NewSignature))
				}
				if change.Details != "" {
					fmt.Printf("    %s\n", color.New(color.Faint).Sprint(change.Details))
				}
			}

			if result.IsBreaking() {
				fmt.Printf("\n%s\n", color.RedString("Contains breaking changes."))
			}
			return nil
		},
	}

	return cmd
}

// parseTree scans and parses every supported file under a directory.
func parseTree(ctx context.Context, root string) ([]*extract.ModuleDef, error) {
	scanResult, err := scanner.Scan(root, scanner.Options{Languages: extract.Languages()})
	if err != nil {
		return nil, err
	}

	var inputs []extract.FileInput
	for _, file := range scanResult.Files {
		source, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(file.Path)))
		if err != nil {
			continue
		}
		inputs = append(inputs, extract.FileInput{Path: file.Path, Source: source, Language: file.Language})
	}

	var modules []*extract.ModuleDef
	for _, result := range extract.ParseFiles(ctx, inputs) {
		if result.Success {
			modules = append(modules, result.Module)
		}
	}
	return modules, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
