package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// a -> b -> c -> a (imports cycle), b -> d (calls).
func testEngine() *Engine {
	nodes := []string{"a", "b", "c", "d"}
	edges := []EdgeTuple{
		{"a", "b", "imports"},
		{"b", "c", "imports"},
		{"c", "a", "imports"},
		{"b", "d", "calls"},
	}
	return From(nodes, edges)
}

func TestCycleDetectionAllEdges(t *testing.T) {
	e := testEngine()

	cycles := e.FindCycles(nil)
	require.Len(t, cycles, 1)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, cycles[0])
}

func TestCycleDetectionFiltered(t *testing.T) {
	e := testEngine()

	cycles := e.FindCycles([]string{"imports"})
	assert.Len(t, cycles, 1)

	cycles = e.FindCycles([]string{"calls"})
	assert.Empty(t, cycles)
}

func TestNoCycles(t *testing.T) {
	e := From([]string{"a", "b", "c"}, []EdgeTuple{
		{"a", "b", "imports"},
		{"b", "c", "imports"},
	})
	assert.Empty(t, e.FindCycles(nil))
}

func TestImpact(t *testing.T) {
	e := testEngine()

	impact := e.Impact("a", nil, 0)
	assert.ElementsMatch(t, []string{"b", "c", "d"}, impact)
}

func TestImpactFiltered(t *testing.T) {
	e := testEngine()

	impact := e.Impact("b", []string{"imports"}, 0)
	assert.Contains(t, impact, "c")
	assert.NotContains(t, impact, "d")

	impact = e.Impact("b", []string{"calls"}, 0)
	assert.Equal(t, []string{"d"}, impact)
}

func TestImpactDepthBound(t *testing.T) {
	e := From([]string{"a", "b", "c", "d"}, []EdgeTuple{
		{"a", "b", "imports"},
		{"b", "c", "imports"},
		{"c", "d", "imports"},
	})

	impact := e.Impact("a", nil, 2)
	assert.ElementsMatch(t, []string{"b", "c"}, impact)
}

func TestImpactExcludesStart(t *testing.T) {
	e := testEngine()

	// Even in a cycle the start node is not reported.
	impact := e.Impact("a", []string{"imports"}, 0)
	assert.NotContains(t, impact, "a")
}

func TestAncestors(t *testing.T) {
	e := testEngine()

	ancestors := e.Ancestors("d", nil, 0)
	assert.Contains(t, ancestors, "b")
	// Transitively a and c via the cycle.
	assert.Contains(t, ancestors, "a")
	assert.Contains(t, ancestors, "c")
}

func TestUnknownNodeReturnsEmpty(t *testing.T) {
	e := testEngine()

	assert.Empty(t, e.Impact("nonexistent", nil, 0))
	assert.Empty(t, e.Ancestors("nonexistent", nil, 0))
	assert.Empty(t, e.Neighbors("nonexistent", Both, 1, nil))

	_, found := e.ShortestPath("nonexistent", "a", nil)
	assert.False(t, found)
}

func TestShortestPath(t *testing.T) {
	e := From([]string{"a", "b", "c", "d"}, []EdgeTuple{
		{"a", "b", "imports"},
		{"b", "c", "imports"},
		{"c", "d", "imports"},
		{"a", "d", "calls"}, // shortcut
	})

	path, found := e.ShortestPath("a", "d", nil)
	require.True(t, found)
	assert.Equal(t, []string{"a", "d"}, path)

	path, found = e.ShortestPath("a", "d", []string{"imports"})
	require.True(t, found)
	assert.Equal(t, []string{"a", "b", "c", "d"}, path)
}

func TestShortestPathSameNode(t *testing.T) {
	e := testEngine()

	path, found := e.ShortestPath("a", "a", nil)
	require.True(t, found)
	assert.Equal(t, []string{"a"}, path)
}

func TestShortestPathNoPath(t *testing.T) {
	e := From([]string{"a", "b"}, nil)

	_, found := e.ShortestPath("a", "b", nil)
	assert.False(t, found)
}

func TestNeighbors(t *testing.T) {
	e := testEngine()

	out := e.Neighbors("b", Outgoing, 1, nil)
	assert.ElementsMatch(t, []string{"c", "d"}, out)

	in := e.Neighbors("b", Incoming, 1, nil)
	assert.Equal(t, []string{"a"}, in)

	both := e.Neighbors("b", Both, 1, nil)
	assert.ElementsMatch(t, []string{"a", "c", "d"}, both)
}

func TestNeighborsDepth(t *testing.T) {
	e := From([]string{"a", "b", "c"}, []EdgeTuple{
		{"a", "b", "imports"},
		{"b", "c", "imports"},
	})

	assert.Equal(t, []string{"b"}, e.Neighbors("a", Outgoing, 1, nil))
	assert.ElementsMatch(t, []string{"b", "c"}, e.Neighbors("a", Outgoing, 2, nil))
}

func TestCounts(t *testing.T) {
	e := testEngine()

	assert.Equal(t, 4, e.NodeCount())
	assert.Equal(t, 4, e.EdgeCount())
	assert.True(t, e.HasNode("a"))
	assert.False(t, e.HasNode("zzz"))
}

func TestEdgeKinds(t *testing.T) {
	e := testEngine()

	assert.Equal(t, []string{"calls", "imports"}, e.EdgeKinds())
}

func TestDanglingEdgesSkipped(t *testing.T) {
	e := From([]string{"a"}, []EdgeTuple{
		{"a", "ghost", "imports"},
		{"ghost", "a", "imports"},
	})

	assert.Equal(t, 1, e.NodeCount())
	assert.Zero(t, e.EdgeCount())
}

func TestParallelKindsBetweenSamePair(t *testing.T) {
	e := From([]string{"x", "y"}, []EdgeTuple{
		{"x", "y", "inherits"},
		{"x", "y", "uses"},
	})

	assert.Equal(t, 2, e.EdgeCount())
	assert.Equal(t, []string{"y"}, e.Impact("x", []string{"uses"}, 0))
	assert.Equal(t, []string{"y"}, e.Impact("x", []string{"inherits"}, 0))
	assert.Empty(t, e.Impact("x", []string{"calls"}, 0))
}

// Filtering must equal running on the edge-restricted subgraph.
func TestFilterEqualsInducedSubgraph(t *testing.T) {
	nodes := []string{"a", "b", "c", "d", "e"}
	edges := []EdgeTuple{
		{"a", "b", "imports"},
		{"b", "a", "imports"},
		{"b", "c", "calls"},
		{"c", "d", "imports"},
		{"d", "c", "calls"},
		{"d", "e", "imports"},
	}

	full := From(nodes, edges)

	var importsOnly []EdgeTuple
	for _, e := range edges {
		if e.Kind == "imports" {
			importsOnly = append(importsOnly, e)
		}
	}
	induced := From(nodes, importsOnly)

	assert.Equal(t, induced.FindCycles(nil), full.FindCycles([]string{"imports"}))
	assert.ElementsMatch(t, induced.Impact("a", nil, 0), full.Impact("a", []string{"imports"}, 0))
	assert.ElementsMatch(t, induced.Ancestors("e", nil, 0), full.Ancestors("e", []string{"imports"}, 0))

	p1, ok1 := induced.ShortestPath("a", "e", nil)
	p2, ok2 := full.ShortestPath("a", "e", []string{"imports"})
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, p1, p2)
}

func TestDuplicateEdgeIgnored(t *testing.T) {
	e := From([]string{"a", "b"}, []EdgeTuple{
		{"a", "b", "imports"},
		{"a", "b", "imports"},
	})
	assert.Equal(t, 1, e.EdgeCount())
}
