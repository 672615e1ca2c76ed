package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/maypok86/otter"
)

// MaxFileCacheWeight bounds the context extractor's line cache at 50MB.
const MaxFileCacheWeight = 50 * 1024 * 1024

// ContextExtractor reads source snippets around nodes for display alongside
// analysis results. File lines are cached with weight-based eviction.
type ContextExtractor struct {
	rootDir string
	cache   otter.Cache[string, []string]
}

// NewContextExtractor creates an extractor rooted at the repository root.
func NewContextExtractor(rootDir string) (*ContextExtractor, error) {
	cache, err := otter.MustBuilder[string, []string](MaxFileCacheWeight).
		Cost(func(key string, value []string) uint32 {
			// Approximate memory cost: each line ~100 bytes.
			return uint32(len(value) * 100)
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("create file cache: %w", err)
	}

	return &ContextExtractor{rootDir: rootDir, cache: cache}, nil
}

// Extract returns the node's source lines padded with contextLines of
// surrounding context, prefixed with the covered line range.
func (c *ContextExtractor) Extract(relPath string, startLine, endLine, contextLines int) (string, error) {
	lines, err := c.fileLines(relPath)
	if err != nil {
		return "", err
	}

	from := max(0, startLine-contextLines-1)
	to := min(len(lines), endLine+contextLines)
	if from >= to {
		return "", fmt.Errorf("line range %d-%d out of bounds for %s", startLine, endLine, relPath)
	}

	snippet := strings.Join(lines[from:to], "\n")
	return fmt.Sprintf("// Lines %d-%d\n%s", from+1, to, snippet), nil
}

// Invalidate drops the cached lines for a file (after an edit).
func (c *ContextExtractor) Invalidate(relPath string) {
	c.cache.Delete(relPath)
}

// Close releases cache resources.
func (c *ContextExtractor) Close() {
	c.cache.Close()
}

func (c *ContextExtractor) fileLines(relPath string) ([]string, error) {
	if lines, ok := c.cache.Get(relPath); ok {
		return lines, nil
	}

	content, err := os.ReadFile(filepath.Join(c.rootDir, filepath.FromSlash(relPath)))
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(content), "\n")
	c.cache.Set(relPath, lines)
	return lines, nil
}
