// Package engine holds the in-memory directed graph mirrored from storage.
// It exists for fast traversal: cycle detection, reachability and shortest
// paths, all with optional edge-kind filtering. The graph lives in a
// dominikbraun/graph store; filtered queries run the library's algorithms on
// a kind-induced subgraph, and BFS reachability walks the library's
// adjacency and predecessor maps. The engine is immutable after
// construction; rebuilds replace it wholesale.
package engine

import (
	"sort"
	"strings"

	dgraph "github.com/dominikbraun/graph"
)

// EdgeTuple is one directed, typed edge fed into the engine.
type EdgeTuple struct {
	Source string
	Target string
	Kind   string
}

// Direction selects edge orientation for neighbor traversal.
type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
	Both     Direction = "both"
)

const kindsAttribute = "kinds"

// Engine is an in-memory directed graph over node id strings. Edges carry a
// kind; parallel kinds between the same pair are preserved by merging them
// into one library edge whose kinds attribute lists them all.
type Engine struct {
	g dgraph.Graph[string, string]

	// out and in are the library's adjacency and predecessor maps, with the
	// kinds attribute split out for per-edge filtering.
	out map[string]map[string][]string
	in  map[string]map[string][]string

	nodeCount int
	edgeCount int
	kinds     map[string]bool
}

// From bulk-constructs an engine. Edges whose endpoints are not in the node
// set are skipped.
func From(nodes []string, edges []EdgeTuple) *Engine {
	engine := &Engine{
		g:     dgraph.New(dgraph.StringHash, dgraph.Directed()),
		kinds: make(map[string]bool),
	}

	nodeSet := make(map[string]bool, len(nodes))
	for _, id := range nodes {
		if nodeSet[id] {
			continue
		}
		nodeSet[id] = true
		_ = engine.g.AddVertex(id)
	}
	engine.nodeCount = len(nodeSet)

	seen := make(map[string]map[string]map[string]bool)
	for _, e := range edges {
		if !nodeSet[e.Source] || !nodeSet[e.Target] {
			continue
		}
		kindsFor, ok := seen[e.Source]
		if !ok {
			kindsFor = make(map[string]map[string]bool)
			seen[e.Source] = kindsFor
		}
		pair, ok := kindsFor[e.Target]
		if !ok {
			pair = make(map[string]bool)
			kindsFor[e.Target] = pair
		}
		if pair[e.Kind] {
			continue
		}
		pair[e.Kind] = true

		if len(pair) == 1 {
			_ = engine.g.AddEdge(e.Source, e.Target,
				dgraph.EdgeAttribute(kindsAttribute, e.Kind),
				dgraph.EdgeWeight(1))
		} else {
			// Parallel kind between the same pair: merge into the attribute.
			if existing, err := engine.g.Edge(e.Source, e.Target); err == nil {
				merged := existing.Properties.Attributes[kindsAttribute] + "," + e.Kind
				_ = engine.g.UpdateEdge(e.Source, e.Target,
					dgraph.EdgeAttribute(kindsAttribute, merged),
					dgraph.EdgeWeight(1))
			}
		}

		engine.kinds[e.Kind] = true
		engine.edgeCount++
	}

	engine.out = splitKinds(adjacencyOf(engine.g))
	engine.in = splitKinds(predecessorsOf(engine.g))

	return engine
}

// adjacencyOf and predecessorsOf read the library's maps, tolerating the
// empty graph.
func adjacencyOf(g dgraph.Graph[string, string]) map[string]map[string]dgraph.Edge[string] {
	m, err := g.AdjacencyMap()
	if err != nil {
		return nil
	}
	return m
}

func predecessorsOf(g dgraph.Graph[string, string]) map[string]map[string]dgraph.Edge[string] {
	m, err := g.PredecessorMap()
	if err != nil {
		return nil
	}
	return m
}

// splitKinds expands the kinds attribute of each library edge into a slice.
func splitKinds(m map[string]map[string]dgraph.Edge[string]) map[string]map[string][]string {
	result := make(map[string]map[string][]string, len(m))
	for from, targets := range m {
		if len(targets) == 0 {
			continue
		}
		inner := make(map[string][]string, len(targets))
		for to, edge := range targets {
			inner[to] = strings.Split(edge.Properties.Attributes[kindsAttribute], ",")
		}
		result[from] = inner
	}
	return result
}

// NodeCount returns the number of nodes.
func (e *Engine) NodeCount() int { return e.nodeCount }

// EdgeCount returns the number of (source, target, kind) triples.
func (e *Engine) EdgeCount() int { return e.edgeCount }

// HasNode reports whether a node id is present.
func (e *Engine) HasNode(id string) bool {
	_, err := e.g.Vertex(id)
	return err == nil
}

// EdgeKinds returns the distinct edge kinds, sorted.
func (e *Engine) EdgeKinds() []string {
	kinds := make([]string, 0, len(e.kinds))
	for k := range e.kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// kindFilter builds the allow-set; nil means all kinds pass.
func kindFilter(edgeKinds []string) map[string]bool {
	if len(edgeKinds) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(edgeKinds))
	for _, k := range edgeKinds {
		allowed[strings.ToLower(k)] = true
	}
	return allowed
}

func kindAllowed(allowed map[string]bool, kinds []string) bool {
	if allowed == nil {
		return true
	}
	for _, k := range kinds {
		if allowed[k] {
			return true
		}
	}
	return false
}

// induced builds the subgraph restricted to the allowed edge kinds. With no
// filter the engine's own graph is returned unchanged.
func (e *Engine) induced(allowed map[string]bool) dgraph.Graph[string, string] {
	if allowed == nil {
		return e.g
	}

	sub := dgraph.New(dgraph.StringHash, dgraph.Directed())
	for id := range e.out {
		_ = sub.AddVertex(id)
	}
	for id := range e.in {
		_ = sub.AddVertex(id)
	}
	for source, targets := range e.out {
		for target, kinds := range targets {
			if kindAllowed(allowed, kinds) {
				_ = sub.AddVertex(target)
				_ = sub.AddEdge(source, target, dgraph.EdgeWeight(1))
			}
		}
	}
	return sub
}

// FindCycles returns the strongly connected components of size >= 2, via the
// library's SCC algorithm. With a filter the SCCs are computed on the
// subgraph induced by the allowed edge kinds.
func (e *Engine) FindCycles(edgeKinds []string) [][]string {
	sccs, err := dgraph.StronglyConnectedComponents(e.induced(kindFilter(edgeKinds)))
	if err != nil {
		return nil
	}

	var cycles [][]string
	for _, scc := range sccs {
		if len(scc) < 2 {
			continue
		}
		sort.Strings(scc)
		cycles = append(cycles, scc)
	}
	return cycles
}

// Impact returns all nodes reachable from the given node on outgoing edges,
// excluding the node itself. maxDepth <= 0 means unbounded.
func (e *Engine) Impact(id string, edgeKinds []string, maxDepth int) []string {
	return e.traverse(id, e.out, edgeKinds, maxDepth)
}

// Ancestors returns all nodes that can reach the given node, excluding the
// node itself. maxDepth <= 0 means unbounded.
func (e *Engine) Ancestors(id string, edgeKinds []string, maxDepth int) []string {
	return e.traverse(id, e.in, edgeKinds, maxDepth)
}

// traverse is a BFS over one direction of the library's maps with edge-kind
// filtering. Querying a non-existent node returns an empty result.
func (e *Engine) traverse(start string, index map[string]map[string][]string, edgeKinds []string, maxDepth int) []string {
	if !e.HasNode(start) {
		return nil
	}

	allowed := kindFilter(edgeKinds)
	visited := map[string]bool{start: true}
	var result []string

	frontier := []string{start}
	depth := 0
	for len(frontier) > 0 {
		if maxDepth > 0 && depth >= maxDepth {
			break
		}
		depth++

		var next []string
		for _, id := range frontier {
			for target, kinds := range index[id] {
				if visited[target] || !kindAllowed(allowed, kinds) {
					continue
				}
				visited[target] = true
				result = append(result, target)
				next = append(next, target)
			}
		}
		frontier = next
	}

	return result
}

// ShortestPath returns the inclusive shortest path between two nodes via the
// library's algorithm (every edge weighs 1, so shortest means fewest hops),
// or false when no path exists. A node reaches itself with a single-element
// path.
func (e *Engine) ShortestPath(from, to string, edgeKinds []string) ([]string, bool) {
	if !e.HasNode(from) || !e.HasNode(to) {
		return nil, false
	}
	if from == to {
		return []string{from}, true
	}

	path, err := dgraph.ShortestPath(e.induced(kindFilter(edgeKinds)), from, to)
	if err != nil || len(path) == 0 {
		return nil, false
	}
	return path, true
}

// Neighbors returns nodes within depth levels of the start node in the
// chosen direction, excluding the start node itself.
func (e *Engine) Neighbors(id string, direction Direction, depth int, edgeKinds []string) []string {
	if !e.HasNode(id) {
		return nil
	}
	if depth <= 0 {
		depth = 1
	}

	allowed := kindFilter(edgeKinds)

	var indexes []map[string]map[string][]string
	switch direction {
	case Outgoing:
		indexes = []map[string]map[string][]string{e.out}
	case Incoming:
		indexes = []map[string]map[string][]string{e.in}
	default:
		indexes = []map[string]map[string][]string{e.out, e.in}
	}

	result := make(map[string]bool)
	current := map[string]bool{id: true}

	for level := 0; level < depth; level++ {
		next := make(map[string]bool)
		for node := range current {
			for _, index := range indexes {
				for neighbor, kinds := range index[node] {
					if neighbor == id || result[neighbor] || !kindAllowed(allowed, kinds) {
						continue
					}
					next[neighbor] = true
				}
			}
		}
		for n := range next {
			result[n] = true
		}
		current = next
	}

	out := make([]string, 0, len(result))
	for n := range result {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
