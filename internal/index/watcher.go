package index

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/0ximu/mu/internal/scanner"
)

// DefaultDebounce batches rapid-fire file events (editor save bursts,
// branch switches) into one incremental update.
const DefaultDebounce = 500 * time.Millisecond

// Watcher feeds file-system changes into the incremental driver. The core
// only requires a stream of changed paths; this is the in-repo provider.
type Watcher struct {
	service  *Service
	logger   *zap.Logger
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher over the service's root.
func NewWatcher(service *Service, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		service:  service,
		logger:   logger,
		debounce: DefaultDebounce,
		watcher:  fsWatcher,
	}

	if err := w.addRecursive(service.Root()); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	return w, nil
}

// Run processes events until the context is canceled. Changed paths are
// debounced and applied as one incremental batch.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(pending) == 0 {
			return
		}
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		pending = make(map[string]struct{})

		w.logger.Info("applying incremental update", zap.Int("files", len(paths)))
		result, err := w.service.IncrementalUpdate(ctx, paths)
		if err != nil {
			w.logger.Error("incremental update failed", zap.Error(err))
			return
		}
		w.logger.Info("incremental update complete",
			zap.Int("nodes", result.NodeCount),
			zap.Int("edges", result.EdgeCount),
			zap.Duration("took", result.Duration))
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.ignored(event.Name) {
				continue
			}

			// New directories join the watch set.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(event.Name)
				}
			}

			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) ||
				event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
				pending[event.Name] = struct{}{}
				if timer == nil {
					timer = time.NewTimer(w.debounce)
				} else {
					timer.Reset(w.debounce)
				}
				timerC = timer.C
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-timerC:
			timerC = nil
			flush()
		}
	}
}

// addRecursive watches a directory tree, skipping hidden and tool dirs.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		name := entry.Name()
		if path != root && (strings.HasPrefix(name, ".") || name == "node_modules" || name == "target" || name == "vendor") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("watch failed", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

// ignored filters events for paths the index never cares about: the tool's
// own directory, VCS internals, and files with unsupported extensions
// (removals pass through since their extension still identifies them).
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.service.Root(), path)
	if err != nil {
		return true
	}
	rel = filepath.ToSlash(rel)

	for _, prefix := range []string{".mu/", ".git/", ".mubase"} {
		if strings.HasPrefix(rel, prefix) {
			return true
		}
	}
	base := filepath.Base(rel)
	if strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, ".tmp") {
		return true
	}

	if _, ok := scanner.DetectLanguage(rel); !ok {
		// Directories have no extension but must not be dropped; their
		// creation re-arms the recursive watch above.
		if filepath.Ext(rel) != "" {
			return true
		}
	}
	return false
}
