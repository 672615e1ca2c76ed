package index

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0ximu/mu/internal/storage"
)

func writeSource(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func newService(t *testing.T, root string) *Service {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, storage.DirName), 0o755))
	store, err := storage.Open(storage.DefaultPath(root))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	service, err := NewService(root, store, zap.NewNop())
	require.NoError(t, err)
	return service
}

// graphSnapshot captures the stored node and edge id sets, skipping external
// placeholders (which incremental mode may leave as orphans).
func graphSnapshot(t *testing.T, store *storage.MUbase) (nodes, edges []string) {
	t.Helper()

	nodeRows, err := store.Query("SELECT id FROM nodes WHERE kind != 'external'")
	require.NoError(t, err)
	for _, row := range nodeRows.Rows {
		nodes = append(nodes, row[0].(string))
	}

	edgeRows, err := store.Query("SELECT id FROM edges")
	require.NoError(t, err)
	for _, row := range edgeRows.Rows {
		edges = append(edges, row[0].(string))
	}

	sort.Strings(nodes)
	sort.Strings(edges)
	return nodes, edges
}

// The S1 scenario: a three-module import cycle.
func TestBuildImportCycle(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.py", "import b\n")
	writeSource(t, root, "b.py", "import c\n")
	writeSource(t, root, "c.py", "import a\n")

	service := newService(t, root)
	result, err := service.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.FileCount)

	eng := service.Engine()
	cycles := eng.FindCycles([]string{"imports"})
	require.Len(t, cycles, 1)
	assert.ElementsMatch(t, []string{"mod:a.py", "mod:b.py", "mod:c.py"}, cycles[0])

	path, found := eng.ShortestPath("mod:a.py", "mod:c.py", []string{"imports"})
	require.True(t, found)
	assert.Equal(t, []string{"mod:a.py", "mod:b.py", "mod:c.py"}, path)

	ancestors := eng.Ancestors("mod:a.py", []string{"imports"}, 0)
	assert.Subset(t, ancestors, []string{"mod:b.py", "mod:c.py"})
}

// The S3 scenario: deleting a file removes its module and incident edges.
func TestIncrementalDeletion(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.py", "import b\n")
	writeSource(t, root, "b.py", "import c\n")
	writeSource(t, root, "c.py", "import a\n")

	service := newService(t, root)
	_, err := service.Build(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "b.py")))
	_, err = service.IncrementalUpdate(context.Background(), []string{"b.py"})
	require.NoError(t, err)

	eng := service.Engine()
	assert.False(t, eng.HasNode("mod:b.py"))
	assert.Empty(t, eng.FindCycles([]string{"imports"}))

	node, err := service.Store().GetNode("mod:b.py")
	require.NoError(t, err)
	assert.Nil(t, node)
}

// The S4 scenario: same-module call resolution, then resolution through an
// import after an edit.
func TestCallResolutionAcrossEdit(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "m.py", "def foo():\n    bar()\n\ndef bar():\n    pass\n")
	writeSource(t, root, "x.py", "def bar():\n    pass\n")

	service := newService(t, root)
	_, err := service.Build(context.Background())
	require.NoError(t, err)

	eng := service.Engine()
	callees := eng.Impact("fn:m.py:foo", []string{"calls"}, 1)
	assert.Equal(t, []string{"fn:m.py:bar"}, callees)

	// Rewrite m.py to import bar from x; the call retargets fn:x.py:bar.
	writeSource(t, root, "m.py", "from x import bar\n\ndef foo():\n    bar()\n")
	_, err = service.IncrementalUpdate(context.Background(), []string{"m.py"})
	require.NoError(t, err)

	eng = service.Engine()
	callees = eng.Impact("fn:m.py:foo", []string{"calls"}, 1)
	assert.Equal(t, []string{"fn:x.py:bar"}, callees)
}

// Property 1: node ids are stable across full and incremental rebuilds.
func TestStableIdentity(t *testing.T) {
	root := t.TempDir()
	source := "class Widget:\n    def render(self):\n        pass\n"
	writeSource(t, root, "ui.py", source)

	service := newService(t, root)
	_, err := service.Build(context.Background())
	require.NoError(t, err)

	classID := "cls:ui.py:Widget"
	node, err := service.Store().GetNode(classID)
	require.NoError(t, err)
	require.NotNil(t, node)

	// Full rebuild.
	_, err = service.Build(context.Background())
	require.NoError(t, err)
	node, err = service.Store().GetNode(classID)
	require.NoError(t, err)
	require.NotNil(t, node)

	// Incremental rebuild of the same file.
	_, err = service.IncrementalUpdate(context.Background(), []string{"ui.py"})
	require.NoError(t, err)
	node, err = service.Store().GetNode(classID)
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, "Widget", node.SimpleName)
}

// Property 2: a sequence of incremental updates converges to the same graph
// as a full rebuild of the final state, modulo orphan externals.
func TestIncrementalEquivalence(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.py", "import b\n\ndef main():\n    helper()\n")
	writeSource(t, root, "b.py", "def helper():\n    pass\n")

	service := newService(t, root)
	_, err := service.Build(context.Background())
	require.NoError(t, err)

	// Edit both files, add a third, apply incrementally.
	writeSource(t, root, "a.py", "import b\nimport c\n\ndef main():\n    helper()\n    extra()\n")
	writeSource(t, root, "c.py", "def extra():\n    pass\n")
	_, err = service.IncrementalUpdate(context.Background(), []string{"a.py", "c.py"})
	require.NoError(t, err)

	// Applying the same batch twice changes nothing (idempotence).
	_, err = service.IncrementalUpdate(context.Background(), []string{"a.py", "c.py"})
	require.NoError(t, err)
	incNodes, incEdges := graphSnapshot(t, service.Store())

	// Full rebuild over the final on-disk state.
	_, err = service.Build(context.Background())
	require.NoError(t, err)
	fullNodes, fullEdges := graphSnapshot(t, service.Store())

	assert.Equal(t, fullNodes, incNodes)
	assert.Equal(t, fullEdges, incEdges)
}

// Property 3: contains edges form a forest rooted at modules.
func TestContainsIsForest(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "app.py", `
class Service:
    def start(self):
        pass

    def stop(self):
        pass

def main():
    pass
`)

	service := newService(t, root)
	_, err := service.Build(context.Background())
	require.NoError(t, err)

	assert.Empty(t, service.Engine().FindCycles([]string{"contains"}))

	// Every non-module, non-external node has exactly one contains parent.
	result, err := service.Store().Query(`
		SELECT n.id, COUNT(e.id) FROM nodes n
		LEFT JOIN edges e ON e.target_id = n.id AND e.kind = 'contains'
		WHERE n.kind NOT IN ('module', 'external')
		GROUP BY n.id`)
	require.NoError(t, err)
	require.NotEmpty(t, result.Rows)
	for _, row := range result.Rows {
		assert.Equal(t, int64(1), row[1], "node %v", row[0])
	}
}

func TestBuildEvents(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.py", "x = 1\n")

	service := newService(t, root)
	events, cancel := service.Subscribe()
	defer cancel()

	_, err := service.Build(context.Background())
	require.NoError(t, err)

	var kinds []EventKind
	for len(kinds) < 3 {
		select {
		case e := <-events:
			kinds = append(kinds, e.Kind)
			assert.NotEmpty(t, e.ID)
		default:
			t.Fatalf("expected 3 events, got %v", kinds)
		}
	}
	assert.Equal(t, []EventKind{BuildStarted, GraphRebuilt, BuildCompleted}, kinds)
}

func TestBuildSkipsUnparseableFiles(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "good.py", "def ok():\n    pass\n")
	writeSource(t, root, "empty.py", "")

	service := newService(t, root)
	result, err := service.Build(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.FileCount, 1)

	node, err := service.Store().GetNode("fn:good.py:ok")
	require.NoError(t, err)
	assert.NotNil(t, node)
}

func TestExternalNodesSurviveFileDeletion(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.py", "import requests\n")

	service := newService(t, root)
	_, err := service.Build(context.Background())
	require.NoError(t, err)

	ext, err := service.Store().GetNode("ext:requests")
	require.NoError(t, err)
	require.NotNil(t, ext)

	require.NoError(t, os.Remove(filepath.Join(root, "a.py")))
	_, err = service.IncrementalUpdate(context.Background(), []string{"a.py"})
	require.NoError(t, err)

	// The external placeholder lingers as an orphan; file-scoped deletion
	// never removes ext: nodes.
	ext, err = service.Store().GetNode("ext:requests")
	require.NoError(t, err)
	assert.NotNil(t, ext)
}

func TestQueryThroughService(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "svc.py", `
class AuthService:
    def login(self, user: str) -> bool:
        if user:
            return True
        return False
`)

	service := newService(t, root)
	_, err := service.Build(context.Background())
	require.NoError(t, err)

	result, err := service.Executor().Execute("cls n%Auth")
	require.NoError(t, err)
	require.Equal(t, 1, result.RowCount)

	show, err := service.Executor().Execute("SHOW dependencies OF mod:svc.py DEPTH 1")
	require.NoError(t, err)
	assert.NotNil(t, show)
}

func TestRelPathNormalization(t *testing.T) {
	root := t.TempDir()
	service := newService(t, root)

	rel, err := service.relPath(filepath.Join(root, "src", "a.py"))
	require.NoError(t, err)
	assert.Equal(t, "src/a.py", rel)

	rel, err = service.relPath("src/a.py")
	require.NoError(t, err)
	assert.Equal(t, "src/a.py", rel)

	_, err = service.relPath(string(filepath.Separator) + "elsewhere" + string(filepath.Separator) + "x.py")
	assert.Error(t, err)
}

func TestGraphNotVisiblyPartialDuringRebuild(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.py", "import b\n")
	writeSource(t, root, "b.py", "x = 1\n")

	service := newService(t, root)
	_, err := service.Build(context.Background())
	require.NoError(t, err)

	// Readers either see the old or the new engine, never a partial one:
	// the swap is a single pointer assignment under the write lock.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			eng := service.Engine()
			count := eng.NodeCount()
			assert.True(t, count == 0 || count >= 2)
		}
	}()

	_, err = service.Build(context.Background())
	require.NoError(t, err)
	<-done
}
