package extract

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// FileInput pairs a source buffer with its repository-relative path and
// detected language, ready for extraction.
type FileInput struct {
	Path     string
	Source   []byte
	Language string
}

// extractFunc is the per-language extraction entrypoint.
type extractFunc func(source []byte, path string) (*ModuleDef, error)

var extractors = map[string]extractFunc{
	"python":     parsePython,
	"typescript": parseTypeScript,
	"tsx":        parseTypeScript,
	"rust":       parseRust,
}

// Supported reports whether an extractor exists for the language.
func Supported(language string) bool {
	_, ok := extractors[language]
	return ok
}

// Languages returns the set of languages with extractors.
func Languages() []string {
	langs := make([]string, 0, len(extractors))
	for lang := range extractors {
		langs = append(langs, lang)
	}
	return langs
}

// ParseSource parses one source buffer and returns a ParseResult. A parse
// failure yields Success=false with the error message; no partial ModuleDef
// is emitted.
func ParseSource(source []byte, path, language string) *ParseResult {
	extract, ok := extractors[language]
	if !ok {
		return &ParseResult{Err: fmt.Sprintf("unsupported language: %s", language)}
	}

	module, err := extract(source, path)
	if err != nil {
		return &ParseResult{Err: fmt.Sprintf("parse %s: %v", path, err)}
	}
	return &ParseResult{Success: true, Module: module}
}

// ParseFiles parses the given files on a worker pool sized to the machine.
// Result order matches input order; a file that fails to parse occupies its
// slot with a failed ParseResult rather than being dropped.
func ParseFiles(ctx context.Context, files []FileInput) []*ParseResult {
	results := make([]*ParseResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	var mu sync.Mutex
	for i := range files {
		i := i
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			res := ParseSource(files[i].Source, files[i].Path, files[i].Language)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}

	// Parse errors are carried in the results, not the group error; the only
	// group error is cancellation.
	if err := g.Wait(); err != nil {
		for i := range results {
			if results[i] == nil {
				results[i] = &ParseResult{Err: err.Error()}
			}
		}
	}

	return results
}
