package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0ximu/mu/internal/graph"
)

func openTestDB(t *testing.T) *MUbase {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "mubase"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenAndMigrate(t *testing.T) {
	db := openTestDB(t)

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.NodeCount)
	assert.Zero(t, stats.EdgeCount)

	result, err := db.Query("SELECT value FROM metadata WHERE key = 'schema_version'")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, SchemaVersion, result.Rows[0][0])
}

func TestInsertAndGetNode(t *testing.T) {
	db := openTestDB(t)

	node := graph.NewModuleNode("src/cli.py")
	require.NoError(t, db.InsertNodes([]graph.Node{node}))

	got, err := db.GetNode("mod:src/cli.py")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "cli", got.SimpleName)
	assert.Equal(t, graph.NodeModule, got.Kind)
	assert.Equal(t, "src/cli.py", got.FilePath)
}

func TestGetNodeMissing(t *testing.T) {
	db := openTestDB(t)

	got, err := db.GetNode("mod:nope.py")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInsertNodesUpsert(t *testing.T) {
	db := openTestDB(t)

	node := graph.NewClassNode("a.py", "Thing", 1, 10, nil)
	require.NoError(t, db.InsertNodes([]graph.Node{node}))

	node.LineEnd = 20
	require.NoError(t, db.InsertNodes([]graph.Node{node}))

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NodeCount)

	got, err := db.GetNode(node.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.LineEnd)
}

func TestInsertEdgesIdempotent(t *testing.T) {
	db := openTestDB(t)

	edge := graph.NewEdge("mod:a.py", "mod:b.py", graph.EdgeImports)
	require.NoError(t, db.InsertEdges([]graph.Edge{edge}))
	require.NoError(t, db.InsertEdges([]graph.Edge{edge}))

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EdgeCount)
}

func TestNodeProperties(t *testing.T) {
	db := openTestDB(t)

	node := graph.NewClassNode("a.py", "Svc", 1, 5, map[string]any{
		"bases":      []any{"Base"},
		"decorators": []any{"interface"},
	})
	require.NoError(t, db.InsertNodes([]graph.Node{node}))

	got, err := db.GetNode(node.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Properties)
	assert.Equal(t, []any{"Base"}, got.Properties["bases"])
}

func TestClear(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.InsertNodes([]graph.Node{graph.NewModuleNode("a.py")}))
	require.NoError(t, db.InsertEdges([]graph.Edge{graph.NewEdge("mod:a.py", "ext:os", graph.EdgeImports)}))

	require.NoError(t, db.Clear())

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.NodeCount)
	assert.Zero(t, stats.EdgeCount)
}

func TestDeleteNodesForFile(t *testing.T) {
	db := openTestDB(t)

	a := graph.NewModuleNode("a.py")
	b := graph.NewModuleNode("b.py")
	fn := graph.NewFunctionNode("a.py", "main", "", 1, 5, 1, nil)
	ext := graph.NewExternalNode("os")
	require.NoError(t, db.InsertNodes([]graph.Node{a, b, fn, ext}))
	require.NoError(t, db.InsertEdges([]graph.Edge{
		graph.NewEdge(a.ID, fn.ID, graph.EdgeContains),
		graph.NewEdge(a.ID, b.ID, graph.EdgeImports),
		graph.NewEdge(b.ID, ext.ID, graph.EdgeImports),
	}))

	deleted, err := db.DeleteNodesForFile("a.py")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted) // mod:a.py and fn:a.py:main

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.NodeCount) // b.py and ext:os survive
	assert.Equal(t, 1, stats.EdgeCount) // only b -> ext:os survives

	// External nodes are never deleted by file-scoped operations.
	got, err := db.GetNode("ext:os")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestGetNodesByKind(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.InsertNodes([]graph.Node{
		graph.NewModuleNode("a.py"),
		graph.NewClassNode("a.py", "A", 1, 2, nil),
		graph.NewFunctionNode("a.py", "f", "", 3, 4, 1, nil),
	}))

	classes, err := db.GetNodesByKind(graph.NodeClass)
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "A", classes[0].SimpleName)
}

func TestQueryCoercion(t *testing.T) {
	db := openTestDB(t)

	node := graph.NewFunctionNode("a.py", "f", "", 3, 9, 7, nil)
	require.NoError(t, db.InsertNodes([]graph.Node{node}))

	result, err := db.Query("SELECT simple_name, complexity, qualified_name, file_path FROM nodes")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, []string{"simple_name", "complexity", "qualified_name", "file_path"}, result.Columns)
	assert.Equal(t, "f", result.Rows[0][0])
	assert.Equal(t, int64(7), result.Rows[0][1])
	assert.Equal(t, "a.py:f", result.Rows[0][2])
}

func TestQueryEmptyResultIsNotError(t *testing.T) {
	db := openTestDB(t)

	result, err := db.Query("SELECT * FROM nodes WHERE kind = 'class'")
	require.NoError(t, err)
	assert.Zero(t, result.RowCount())
}

func TestLoadGraph(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.InsertNodes([]graph.Node{
		graph.NewModuleNode("a.py"),
		graph.NewModuleNode("b.py"),
	}))
	require.NoError(t, db.InsertEdges([]graph.Edge{
		graph.NewEdge("mod:a.py", "mod:b.py", graph.EdgeImports),
	}))

	nodes, edges, err := db.LoadGraph()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"mod:a.py", "mod:b.py"}, nodes)
	require.Len(t, edges, 1)
	assert.Equal(t, EdgeData{SourceID: "mod:a.py", TargetID: "mod:b.py", Kind: "imports"}, edges[0])
}

func TestReadOnlyRefusesWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mubase")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.InsertNodes([]graph.Node{graph.NewModuleNode("a.py")}))
	require.NoError(t, db.Close())

	ro, err := OpenReadOnly(path)
	require.NoError(t, err)
	defer ro.Close()

	assert.ErrorIs(t, ro.InsertNodes([]graph.Node{graph.NewModuleNode("b.py")}), ErrReadOnly)
	assert.ErrorIs(t, ro.Clear(), ErrReadOnly)
	_, err = ro.DeleteNodesForFile("a.py")
	assert.ErrorIs(t, err, ErrReadOnly)

	// Reads still work.
	got, err := ro.GetNode("mod:a.py")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, DirName), 0o755))
	dbPath := filepath.Join(root, DirName, FileName)
	require.NoError(t, os.WriteFile(dbPath, nil, 0o644))

	nested := filepath.Join(root, "src", "deep")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := Find(nested)
	require.NoError(t, err)
	assert.Equal(t, dbPath, found)
}

func TestFindLegacy(t *testing.T) {
	root := t.TempDir()
	legacy := filepath.Join(root, LegacyFileName)
	require.NoError(t, os.WriteFile(legacy, nil, 0o644))

	found, err := Find(root)
	require.NoError(t, err)
	assert.Equal(t, legacy, found)
}

func TestFindMissing(t *testing.T) {
	_, err := Find(t.TempDir())
	assert.ErrorIs(t, err, ErrNoDatabase)
}
