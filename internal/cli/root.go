// Package cli implements the mu command tree. Commands are thin wrappers
// over the index service, query executor and analysis skins.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/0ximu/mu/internal/config"
	"github.com/0ximu/mu/internal/index"
	"github.com/0ximu/mu/internal/scanner"
	"github.com/0ximu/mu/internal/storage"
)

var (
	rootDir      string
	outputFormat string
)

// NewRootCommand builds the mu command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "mu",
		Short: "Index a repository into a queryable code graph",
		Long: `mu indexes a source tree into a graph of modules, classes and functions
connected by contains, imports, inherits, uses and calls edges, persisted
in .mu/mubase and queryable with SQL, terse syntax or structured queries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&rootDir, "root", "C", ".", "repository root")
	root.PersistentFlags().StringVarP(&outputFormat, "format", "f", "table", "output format: table, json, csv")

	root.AddCommand(
		newBuildCommand(),
		newQueryCommand(),
		newDepsCommand(),
		newCyclesCommand(),
		newImpactCommand(),
		newAncestorsCommand(),
		newPathCommand(),
		newPatternsCommand(),
		newDiffCommand(),
		newStatsCommand(),
		newWatchCommand(),
		newMCPCommand(),
		newVersionCommand(),
	)

	return root
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds a console logger at the configured level.
func newLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// openService opens (or creates) the store under the root and wires the
// index service with the configured scanner options.
func openService(opts ...index.Option) (*index.Service, *config.Config, error) {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return nil, nil, err
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}

	dbPath := storage.DefaultPath(rootDir)
	if err := os.MkdirAll(filepath.Join(rootDir, storage.DirName), 0o755); err != nil {
		return nil, nil, err
	}

	store, err := storage.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}

	opts = append(opts, index.WithScanOptions(scanner.Options{
		Extensions:     cfg.Scan.Extensions,
		IgnorePatterns: cfg.Scan.Ignore,
		IncludeHidden:  cfg.Scan.IncludeHidden,
		FollowSymlinks: cfg.Scan.FollowSymlinks,
		MaxFileSize:    cfg.Scan.MaxFileSize,
	}))

	service, err := index.NewService(rootDir, store, logger, opts...)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return service, cfg, nil
}

// openExistingService locates an existing database (walking up parents) and
// wires a service around it without creating anything.
func openExistingService() (*index.Service, error) {
	dbPath, err := storage.Find(rootDir)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(dbPath)
	if err != nil {
		return nil, err
	}

	service, err := index.NewService(rootDir, store, zap.NewNop())
	if err != nil {
		store.Close()
		return nil, err
	}
	return service, nil
}
