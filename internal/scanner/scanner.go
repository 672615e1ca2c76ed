// Package scanner enumerates repository files to index. It honors
// version-control ignore semantics (per-directory .gitignore at every level,
// the global ignore file, repo excludes) plus .muignore files of the same
// syntax, detects languages by extension, and optionally hashes content for
// cache invalidation.
package scanner

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"
)

// IgnoreFileName is the tool-specific ignore file, honored at every
// directory level with gitignore syntax.
const IgnoreFileName = ".muignore"

// Options configure a scan.
type Options struct {
	// Extensions restricts results to these file extensions (without dots).
	Extensions []string

	// IgnorePatterns are extra glob patterns to ignore beyond the ignore
	// files (e.g. "dist/**").
	IgnorePatterns []string

	// FollowSymlinks enables following symbolic links. Default off.
	FollowSymlinks bool

	// ComputeHashes enables 64-bit content hashing per file.
	ComputeHashes bool

	// CountLines enables line counting per file.
	CountLines bool

	// IncludeHidden includes dotfiles and dot-directories.
	IncludeHidden bool

	// MaxFileSize skips files larger than this many bytes when > 0.
	MaxFileSize int64

	// Languages restricts results to these language ids.
	Languages []string
}

// File describes one scanned file.
type File struct {
	// Path is relative to the scan root, slash-separated.
	Path string `json:"path"`

	// Language is the detected language id.
	Language string `json:"language"`

	// SizeBytes is the file size.
	SizeBytes int64 `json:"size_bytes"`

	// Hash is the xxHash64 content hash ("xxh64:<hex>"), empty unless
	// requested. Non-cryptographic; used for cache invalidation only.
	Hash string `json:"hash,omitempty"`

	// Lines is the number of lines, zero unless requested.
	Lines int `json:"lines,omitempty"`
}

// Result is the outcome of a scan. Set membership is deterministic; order is
// not guaranteed.
type Result struct {
	Files    []File        `json:"files"`
	Skipped  int           `json:"skipped"`
	Errors   int           `json:"errors"`
	Duration time.Duration `json:"duration"`
}

// extensionLanguages maps file extensions to language ids.
var extensionLanguages = map[string]string{
	"py":    "python",
	"pyw":   "python",
	"pyi":   "python",
	"ts":    "typescript",
	"mts":   "typescript",
	"tsx":   "tsx",
	"js":    "javascript",
	"mjs":   "javascript",
	"jsx":   "jsx",
	"rs":    "rust",
	"go":    "go",
	"java":  "java",
	"rb":    "ruby",
	"php":   "php",
	"c":     "c",
	"h":     "c",
	"cpp":   "cpp",
	"hpp":   "cpp",
	"cc":    "cpp",
	"cs":    "csharp",
	"kt":    "kotlin",
	"kts":   "kotlin",
	"swift": "swift",
}

// DetectLanguage maps a file path to a language id by extension. Returns
// false for unrecognized extensions.
func DetectLanguage(path string) (string, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	lang, ok := extensionLanguages[ext]
	return lang, ok
}

// Scan walks the directory tree rooted at root and returns the candidate
// files. A non-existent root is a fatal error; per-file I/O errors are
// counted but never abort the scan. The scanner never mutates the graph.
func Scan(root string, opts Options) (*Result, error) {
	start := time.Now()

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s: not a directory", root)
	}

	matcher, err := newIgnoreMatcher(root, opts.IgnorePatterns)
	if err != nil {
		return nil, fmt.Errorf("compile ignore patterns: %w", err)
	}

	extFilter := toLowerSet(opts.Extensions, ".")
	langFilter := toLowerSet(opts.Languages, "")

	result := &Result{}
	var candidates []string

	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			result.Errors++
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			result.Errors++
			return nil
		}
		rel = filepath.ToSlash(rel)

		if entry.IsDir() {
			if !opts.IncludeHidden && isHidden(entry.Name()) {
				return filepath.SkipDir
			}
			if matcher.ignored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if entry.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}
		if !opts.IncludeHidden && isHidden(entry.Name()) {
			return nil
		}
		if matcher.ignored(rel, false) {
			result.Skipped++
			return nil
		}

		if extFilter != nil {
			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(rel), "."))
			if !extFilter[ext] {
				result.Skipped++
				return nil
			}
		}

		lang, ok := DetectLanguage(rel)
		if !ok {
			result.Skipped++
			return nil
		}
		if langFilter != nil && !langFilter[strings.ToLower(lang)] {
			result.Skipped++
			return nil
		}

		candidates = append(candidates, rel)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk %s: %w", root, walkErr)
	}

	// Stat, hash and count in parallel; membership stays deterministic.
	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())

	for _, rel := range candidates {
		rel := rel
		g.Go(func() error {
			file, skip, ok := examineFile(root, rel, opts)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case skip:
				result.Skipped++
			case !ok:
				result.Errors++
			default:
				result.Files = append(result.Files, file)
			}
			return nil
		})
	}
	_ = g.Wait()

	result.Duration = time.Since(start)
	return result, nil
}

// examineFile stats one candidate and optionally hashes and counts lines.
func examineFile(root, rel string, opts Options) (file File, skip, ok bool) {
	full := filepath.Join(root, filepath.FromSlash(rel))

	info, err := os.Stat(full)
	if err != nil {
		return File{}, false, false
	}
	if opts.MaxFileSize > 0 && info.Size() > opts.MaxFileSize {
		return File{}, true, false
	}

	lang, _ := DetectLanguage(rel)
	file = File{
		Path:      rel,
		Language:  lang,
		SizeBytes: info.Size(),
	}

	if opts.ComputeHashes || opts.CountLines {
		content, err := os.ReadFile(full)
		if err != nil {
			return File{}, false, false
		}
		if opts.ComputeHashes {
			file.Hash = fmt.Sprintf("xxh64:%016x", xxhash.Sum64(content))
		}
		if opts.CountLines {
			file.Lines = bytes.Count(content, []byte{'\n'})
			if len(content) > 0 && content[len(content)-1] != '\n' {
				file.Lines++
			}
		}
	}

	return file, false, true
}

// ignoreMatcher combines gitignore-syntax patterns from ignore files with
// extra glob patterns from configuration.
type ignoreMatcher struct {
	matcher gitignore.Matcher
	globs   []glob.Glob
}

// newIgnoreMatcher collects patterns from per-directory .gitignore and
// .muignore files, the user's global excludes, and the repository's
// .git/info/exclude, plus the caller's extra glob patterns.
func newIgnoreMatcher(root string, extraPatterns []string) (*ignoreMatcher, error) {
	bfs := osfs.New(root)

	var patterns []gitignore.Pattern

	// Global gitignore (core.excludesFile) and system excludes.
	if ps, err := gitignore.LoadGlobalPatterns(osfs.New("/")); err == nil {
		patterns = append(patterns, ps...)
	}
	if ps, err := gitignore.LoadSystemPatterns(osfs.New("/")); err == nil {
		patterns = append(patterns, ps...)
	}

	// Per-directory .gitignore files at every level (skips .git itself).
	if ps, err := gitignore.ReadPatterns(bfs, nil); err == nil {
		patterns = append(patterns, ps...)
	}

	// Repository excludes.
	patterns = append(patterns, readIgnoreFile(root, filepath.Join(".git", "info", "exclude"), nil)...)

	// .muignore at every level, same syntax.
	_ = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if entry.IsDir() {
			if entry.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.Name() != IgnoreFileName {
			return nil
		}
		rel, relErr := filepath.Rel(root, filepath.Dir(path))
		if relErr != nil {
			return nil
		}
		var domain []string
		if rel != "." {
			domain = strings.Split(filepath.ToSlash(rel), "/")
		}
		relFile, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		patterns = append(patterns, readIgnoreFile(root, relFile, domain)...)
		return nil
	})

	im := &ignoreMatcher{matcher: gitignore.NewMatcher(patterns)}

	for _, pattern := range extraPatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		im.globs = append(im.globs, g)
	}

	return im, nil
}

// readIgnoreFile parses one gitignore-syntax file into patterns scoped to
// the given domain.
func readIgnoreFile(root, rel string, domain []string) []gitignore.Pattern {
	content, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		return nil
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, domain))
	}
	return patterns
}

// ignored reports whether a relative slash path is excluded.
func (im *ignoreMatcher) ignored(rel string, isDir bool) bool {
	if rel == ".git" || strings.HasPrefix(rel, ".git/") {
		return true
	}
	if im.matcher.Match(strings.Split(rel, "/"), isDir) {
		return true
	}
	for _, g := range im.globs {
		if g.Match(rel) {
			return true
		}
		// A bare directory name also excludes its subtree, matching the
		// "pattern/**" spelling.
		if isDir && g.Match(rel+"/**") {
			return true
		}
	}
	return false
}

// isHidden reports whether a file or directory name is hidden.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// toLowerSet builds a lowercase membership set, trimming an optional prefix.
func toLowerSet(values []string, trimPrefix string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.ToLower(v)
		if trimPrefix != "" {
			v = strings.TrimPrefix(v, trimPrefix)
		}
		set[v] = true
	}
	return set
}
