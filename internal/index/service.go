// Package index drives the indexing pipeline: scan, extract, build, store,
// reload. It owns the store and the in-memory engine and exposes full builds
// and incremental updates plus a graph event stream.
package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/0ximu/mu/internal/analysis"
	"github.com/0ximu/mu/internal/engine"
	"github.com/0ximu/mu/internal/extract"
	"github.com/0ximu/mu/internal/graph"
	"github.com/0ximu/mu/internal/query"
	"github.com/0ximu/mu/internal/scanner"
	"github.com/0ximu/mu/internal/storage"
)

// BuildResult summarizes a full build or incremental update.
type BuildResult struct {
	NodeCount         int           `json:"node_count"`
	EdgeCount         int           `json:"edge_count"`
	FileCount         int           `json:"file_count"`
	CallSitesSeen     int           `json:"call_sites_seen"`
	CallSitesResolved int           `json:"call_sites_resolved"`
	Duration          time.Duration `json:"duration"`
}

// ProgressReporter receives build progress callbacks.
type ProgressReporter interface {
	OnBuildStart(totalFiles int)
	OnFileProcessed(processed, total int, fileName string)
	OnBuildComplete(nodeCount, edgeCount int, duration time.Duration)
}

// Service coordinates the pipeline around one repository root. The storage
// writer runs on the calling goroutine; the in-memory engine is guarded by a
// sync.RWMutex and swapped atomically after each (re)build. Readers share
// access, but the lock is not reader-preferring: while a writer waits for it,
// new readers block until the swap is done.
type Service struct {
	root     string
	store    *storage.MUbase
	logger   *zap.Logger
	scanOpts scanner.Options
	progress ProgressReporter

	engMu sync.RWMutex
	eng   *engine.Engine

	subsMu sync.Mutex
	subs   map[chan Event]struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithScanOptions overrides the scanner configuration.
func WithScanOptions(opts scanner.Options) Option {
	return func(s *Service) { s.scanOpts = opts }
}

// WithProgress attaches a progress reporter.
func WithProgress(progress ProgressReporter) Option {
	return func(s *Service) { s.progress = progress }
}

// NewService creates a service over an open store. The engine starts from
// the store's current contents so queries work without a fresh build.
func NewService(root string, store *storage.MUbase, logger *zap.Logger, opts ...Option) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		root:   root,
		store:  store,
		logger: logger,
		subs:   make(map[chan Event]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.reloadEngine(); err != nil {
		return nil, fmt.Errorf("load graph: %w", err)
	}
	return s, nil
}

// Root returns the repository root.
func (s *Service) Root() string { return s.root }

// Store returns the underlying MUbase.
func (s *Service) Store() *storage.MUbase { return s.store }

// Engine returns the current in-memory graph. Readers share access; the
// rebuild path takes the write lock only for the final swap.
func (s *Service) Engine() *engine.Engine {
	s.engMu.RLock()
	defer s.engMu.RUnlock()
	return s.eng
}

// Analyzer returns an analyzer bound to this service's store and engine.
func (s *Service) Analyzer() *analysis.Analyzer {
	return analysis.New(s.store, s)
}

// Executor returns a query executor with the graph ops surface attached.
func (s *Service) Executor() *query.Executor {
	return query.New(s.store, s.Analyzer())
}

// Build runs the full pipeline from a clean store over all files.
func (s *Service) Build(ctx context.Context) (*BuildResult, error) {
	start := time.Now()
	s.broadcast(newEvent(BuildStarted))
	s.logger.Info("starting build", zap.String("root", s.root))

	scanOpts := s.scanOpts
	scanOpts.Languages = extract.Languages()
	scanResult, err := scanner.Scan(s.root, scanOpts)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	s.logger.Info("scanned files",
		zap.Int("files", len(scanResult.Files)),
		zap.Int("skipped", scanResult.Skipped),
		zap.Int("errors", scanResult.Errors))

	if s.progress != nil {
		s.progress.OnBuildStart(len(scanResult.Files))
	}

	inputs := make([]extract.FileInput, 0, len(scanResult.Files))
	for _, file := range scanResult.Files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		source, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(file.Path)))
		if err != nil {
			s.logger.Warn("read failed", zap.String("path", file.Path), zap.Error(err))
			continue
		}
		inputs = append(inputs, extract.FileInput{Path: file.Path, Source: source, Language: file.Language})
	}

	parseResults := extract.ParseFiles(ctx, inputs)

	modules := make([]*extract.ModuleDef, 0, len(parseResults))
	for i, result := range parseResults {
		if s.progress != nil {
			s.progress.OnFileProcessed(i+1, len(inputs), filepath.Base(inputs[i].Path))
		}
		if !result.Success {
			s.logger.Warn("parse failed", zap.String("error", result.Err))
			continue
		}
		modules = append(modules, result.Module)
	}

	built := graph.Build(modules)
	s.logger.Info("built graph",
		zap.Int("nodes", len(built.Nodes)),
		zap.Int("edges", len(built.Edges)),
		zap.Int("call_sites", built.CallSitesSeen),
		zap.Int("calls_resolved", built.CallSitesResolved))

	// A full build begins with clear(); the upserts that follow repopulate
	// the store before the in-memory swap.
	if err := s.store.Clear(); err != nil {
		return nil, fmt.Errorf("clear store: %w", err)
	}
	if err := s.store.InsertNodes(built.Nodes); err != nil {
		return nil, fmt.Errorf("insert nodes: %w", err)
	}
	if err := s.store.InsertEdges(built.Edges); err != nil {
		return nil, fmt.Errorf("insert edges: %w", err)
	}

	if err := s.reloadEngine(); err != nil {
		return nil, fmt.Errorf("reload graph: %w", err)
	}

	duration := time.Since(start)
	if s.progress != nil {
		s.progress.OnBuildComplete(len(built.Nodes), len(built.Edges), duration)
	}

	rebuilt := newEvent(GraphRebuilt)
	rebuilt.NodeCount = len(built.Nodes)
	rebuilt.EdgeCount = len(built.Edges)
	s.broadcast(rebuilt)

	completed := newEvent(BuildCompleted)
	completed.Duration = duration
	s.broadcast(completed)

	return &BuildResult{
		NodeCount:         len(built.Nodes),
		EdgeCount:         len(built.Edges),
		FileCount:         len(scanResult.Files),
		CallSitesSeen:     built.CallSitesSeen,
		CallSitesResolved: built.CallSitesResolved,
		Duration:          duration,
	}, nil
}

// IncrementalUpdate reflects a batch of changed paths into the graph:
// delete-by-file, re-extract, re-insert, reload. Files that no longer exist
// stay deleted; unsupported or unparseable files are absent from the graph
// until their next successful parse.
func (s *Service) IncrementalUpdate(ctx context.Context, paths []string) (*BuildResult, error) {
	start := time.Now()

	relPaths := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := s.relPath(p)
		if err != nil {
			s.logger.Warn("skipping path outside root", zap.String("path", p))
			continue
		}
		relPaths = append(relPaths, rel)
	}

	for _, rel := range relPaths {
		deleted, err := s.store.DeleteNodesForFile(rel)
		if err != nil {
			return nil, fmt.Errorf("delete nodes for %s: %w", rel, err)
		}
		s.logger.Debug("deleted nodes", zap.String("path", rel), zap.Int("count", deleted))
	}

	// Re-extract the files that still exist and are supported.
	var inputs []extract.FileInput
	for _, rel := range relPaths {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		full := filepath.Join(s.root, filepath.FromSlash(rel))
		if _, err := os.Stat(full); err != nil {
			continue
		}
		lang, ok := scanner.DetectLanguage(rel)
		if !ok || !extract.Supported(lang) {
			continue
		}
		source, err := os.ReadFile(full)
		if err != nil {
			s.logger.Warn("read failed", zap.String("path", rel), zap.Error(err))
			continue
		}
		inputs = append(inputs, extract.FileInput{Path: rel, Source: source, Language: lang})
	}

	var modules []*extract.ModuleDef
	for _, result := range extract.ParseFiles(ctx, inputs) {
		if !result.Success {
			s.logger.Warn("parse failed", zap.String("error", result.Err))
			continue
		}
		modules = append(modules, result.Module)
	}

	var totalNodes, totalEdges, seen, resolved int
	if len(modules) > 0 {
		// Resolution runs against lookup tables derived from the current
		// contents of storage, not a single-module view.
		lookups, err := s.storedLookups()
		if err != nil {
			return nil, err
		}

		built := graph.BuildWithLookups(modules, lookups)
		if err := s.store.InsertNodes(built.Nodes); err != nil {
			return nil, fmt.Errorf("insert nodes: %w", err)
		}
		if err := s.store.InsertEdges(built.Edges); err != nil {
			return nil, fmt.Errorf("insert edges: %w", err)
		}
		totalNodes = len(built.Nodes)
		totalEdges = len(built.Edges)
		seen = built.CallSitesSeen
		resolved = built.CallSitesResolved
	}

	if err := s.reloadEngine(); err != nil {
		return nil, fmt.Errorf("reload graph: %w", err)
	}

	rebuilt := newEvent(GraphRebuilt)
	if eng := s.Engine(); eng != nil {
		rebuilt.NodeCount = eng.NodeCount()
		rebuilt.EdgeCount = eng.EdgeCount()
	}
	s.broadcast(rebuilt)

	return &BuildResult{
		NodeCount:         totalNodes,
		EdgeCount:         totalEdges,
		FileCount:         len(relPaths),
		CallSitesSeen:     seen,
		CallSitesResolved: resolved,
		Duration:          time.Since(start),
	}, nil
}

// storedLookups derives resolution tables from the store.
func (s *Service) storedLookups() (*graph.Lookups, error) {
	moduleNodes, err := s.store.GetNodesByKind(graph.NodeModule)
	if err != nil {
		return nil, fmt.Errorf("load modules: %w", err)
	}
	classNodes, err := s.store.GetNodesByKind(graph.NodeClass)
	if err != nil {
		return nil, fmt.Errorf("load classes: %w", err)
	}
	functionNodes, err := s.store.GetNodesByKind(graph.NodeFunction)
	if err != nil {
		return nil, fmt.Errorf("load functions: %w", err)
	}
	return graph.LookupsFromNodes(moduleNodes, classNodes, functionNodes), nil
}

// reloadEngine mirrors storage into a fresh engine and swaps it in.
func (s *Service) reloadEngine() error {
	nodes, edgeData, err := s.store.LoadGraph()
	if err != nil {
		return err
	}

	edges := make([]engine.EdgeTuple, len(edgeData))
	for i, e := range edgeData {
		edges[i] = engine.EdgeTuple{Source: e.SourceID, Target: e.TargetID, Kind: e.Kind}
	}
	fresh := engine.From(nodes, edges)

	s.engMu.Lock()
	s.eng = fresh
	s.engMu.Unlock()

	return nil
}

// relPath normalizes an absolute or repo-relative path to a slash-separated
// path relative to the root.
func (s *Service) relPath(p string) (string, error) {
	if !filepath.IsAbs(p) {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}
	rel, err := filepath.Rel(s.root, p)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %s outside root %s", p, s.root)
	}
	return filepath.ToSlash(rel), nil
}
