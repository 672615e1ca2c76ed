// Package analysis provides the thin reasoning skins over storage and the
// graph engine: dependency walks, impact and ancestor reachability, cycle
// reports, shortest paths, pattern scans, risk scoring and semantic diff.
package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/0ximu/mu/internal/engine"
	"github.com/0ximu/mu/internal/graph"
	"github.com/0ximu/mu/internal/storage"
)

// EngineProvider yields the current in-memory graph. The index service
// implements it; rebuilds swap the engine atomically behind it.
type EngineProvider interface {
	Engine() *engine.Engine
}

// dependencyKinds are the edge kinds that represent actual dependencies;
// structural containment is reported only when explicitly requested.
var dependencyKinds = []string{"imports", "inherits", "uses", "calls"}

// allKinds spans every edge kind including containment.
var allKinds []string

func init() {
	for _, k := range graph.EdgeKinds {
		allKinds = append(allKinds, string(k))
	}
}

// Analyzer answers graph questions against one store/engine pair.
type Analyzer struct {
	store  *storage.MUbase
	engine EngineProvider
}

// New creates an analyzer.
func New(store *storage.MUbase, provider EngineProvider) *Analyzer {
	return &Analyzer{store: store, engine: provider}
}

// ResolveNode maps a user-supplied name to a node id: an exact id wins,
// otherwise the simple name is looked up in storage (classes first, then
// functions and modules).
func (a *Analyzer) ResolveNode(target string) (string, error) {
	if node, err := a.store.GetNode(target); err != nil {
		return "", err
	} else if node != nil {
		return node.ID, nil
	}

	result, err := a.store.Query(`
		SELECT id FROM nodes WHERE simple_name = ?
		ORDER BY CASE kind
			WHEN 'class' THEN 0
			WHEN 'function' THEN 1
			WHEN 'module' THEN 2
			ELSE 3 END
		LIMIT 1`, target)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", target, err)
	}
	if len(result.Rows) == 0 {
		return "", fmt.Errorf("node %q not found", target)
	}
	id, _ := result.Rows[0][0].(string)
	return id, nil
}

// parentModule returns the id of the module containing a class or function
// node, empty when the node is a module or external.
func (a *Analyzer) parentModule(nodeID string) string {
	if !strings.HasPrefix(nodeID, "cls:") && !strings.HasPrefix(nodeID, "fn:") {
		return ""
	}
	node, err := a.store.GetNode(nodeID)
	if err != nil || node == nil || node.FilePath == "" {
		return ""
	}
	return graph.ModuleID(node.FilePath)
}

// DepOptions tune a dependency walk.
type DepOptions struct {
	Depth           int
	IncludeContains bool
}

// Dependency is one reached node with its BFS depth.
type Dependency struct {
	ID    string `json:"id"`
	Depth int    `json:"depth"`
}

// DependenciesOf walks outgoing edges from a node up to a depth, excluding
// contains edges unless requested. For class and function nodes, the import
// edges live on the enclosing module, so the parent module joins the
// starting frontier without itself appearing in the results.
func (a *Analyzer) DependenciesOf(target string, opts DepOptions) ([]Dependency, error) {
	return a.walk(target, opts, false)
}

// DependentsOf is the reverse walk: who depends on this node.
func (a *Analyzer) DependentsOf(target string, opts DepOptions) ([]Dependency, error) {
	return a.walk(target, opts, true)
}

func (a *Analyzer) walk(target string, opts DepOptions, reverse bool) ([]Dependency, error) {
	id, err := a.ResolveNode(target)
	if err != nil {
		return nil, err
	}

	eng := a.engine.Engine()
	if eng == nil {
		return nil, fmt.Errorf("graph not loaded")
	}

	depth := opts.Depth
	if depth <= 0 {
		depth = 1
	}

	kinds := dependencyKinds
	if opts.IncludeContains {
		kinds = allKinds
	}

	frontier := []string{id}
	if !reverse {
		if moduleID := a.parentModule(id); moduleID != "" && eng.HasNode(moduleID) {
			frontier = append(frontier, moduleID)
		}
	}

	excluded := make(map[string]bool, len(frontier))
	for _, f := range frontier {
		excluded[f] = true
	}

	seen := make(map[string]bool)
	var result []Dependency

	current := frontier
	for level := 1; level <= depth && len(current) > 0; level++ {
		var next []string
		for _, node := range current {
			var neighbors []string
			if reverse {
				neighbors = eng.Neighbors(node, engine.Incoming, 1, kinds)
			} else {
				neighbors = eng.Neighbors(node, engine.Outgoing, 1, kinds)
			}
			for _, n := range neighbors {
				if excluded[n] || seen[n] {
					continue
				}
				seen[n] = true
				result = append(result, Dependency{ID: n, Depth: level})
				next = append(next, n)
			}
		}
		current = next
	}

	return result, nil
}

// ImpactOf returns everything reachable from the node on outgoing edges:
// "if I change X, what might break".
func (a *Analyzer) ImpactOf(target string, edgeKinds []string) ([]string, error) {
	id, err := a.ResolveNode(target)
	if err != nil {
		return nil, err
	}
	eng := a.engine.Engine()
	if eng == nil {
		return nil, fmt.Errorf("graph not loaded")
	}
	return eng.Impact(id, edgeKinds, 0), nil
}

// AncestorsOf returns everything that can reach the node on incoming edges.
func (a *Analyzer) AncestorsOf(target string, edgeKinds []string) ([]string, error) {
	id, err := a.ResolveNode(target)
	if err != nil {
		return nil, err
	}
	eng := a.engine.Engine()
	if eng == nil {
		return nil, fmt.Errorf("graph not loaded")
	}
	return eng.Ancestors(id, edgeKinds, 0), nil
}

// CyclesIn reports the strongly connected components of size >= 2 over the
// allowed edge kinds, sorted for stable output.
func (a *Analyzer) CyclesIn(edgeKinds []string) ([][]string, error) {
	eng := a.engine.Engine()
	if eng == nil {
		return nil, fmt.Errorf("graph not loaded")
	}
	cycles := eng.FindCycles(edgeKinds)
	sort.Slice(cycles, func(i, j int) bool {
		if len(cycles[i]) != len(cycles[j]) {
			return len(cycles[i]) > len(cycles[j])
		}
		return cycles[i][0] < cycles[j][0]
	})
	return cycles, nil
}

// PathBetween returns the inclusive shortest path between two nodes, or nil
// when no path exists.
func (a *Analyzer) PathBetween(from, to string, edgeKinds []string) ([]string, error) {
	fromID, err := a.ResolveNode(from)
	if err != nil {
		return nil, err
	}
	toID, err := a.ResolveNode(to)
	if err != nil {
		return nil, err
	}
	eng := a.engine.Engine()
	if eng == nil {
		return nil, fmt.Errorf("graph not loaded")
	}
	path, found := eng.ShortestPath(fromID, toID, edgeKinds)
	if !found {
		return nil, nil
	}
	return path, nil
}

// The query executor's GraphOps surface.

// Dependencies lists dependency ids up to depth.
func (a *Analyzer) Dependencies(target string, depth int) ([]string, error) {
	deps, err := a.DependenciesOf(target, DepOptions{Depth: depth})
	if err != nil {
		return nil, err
	}
	return depIDs(deps), nil
}

// Dependents lists dependent ids up to depth.
func (a *Analyzer) Dependents(target string, depth int) ([]string, error) {
	deps, err := a.DependentsOf(target, DepOptions{Depth: depth})
	if err != nil {
		return nil, err
	}
	return depIDs(deps), nil
}

// Callers lists functions calling the target, up to depth.
func (a *Analyzer) Callers(target string, depth int) ([]string, error) {
	id, err := a.ResolveNode(target)
	if err != nil {
		return nil, err
	}
	eng := a.engine.Engine()
	if eng == nil {
		return nil, fmt.Errorf("graph not loaded")
	}
	return eng.Ancestors(id, []string{"calls"}, depth), nil
}

// Callees lists functions the target calls, up to depth.
func (a *Analyzer) Callees(target string, depth int) ([]string, error) {
	id, err := a.ResolveNode(target)
	if err != nil {
		return nil, err
	}
	eng := a.engine.Engine()
	if eng == nil {
		return nil, fmt.Errorf("graph not loaded")
	}
	return eng.Impact(id, []string{"calls"}, depth), nil
}

// Impact is unrestricted outgoing reachability.
func (a *Analyzer) Impact(target string) ([]string, error) {
	return a.ImpactOf(target, nil)
}

// Ancestors is unrestricted incoming reachability.
func (a *Analyzer) Ancestors(target string) ([]string, error) {
	return a.AncestorsOf(target, nil)
}

// Cycles reports SCCs over the allowed kinds.
func (a *Analyzer) Cycles(edgeKinds []string) ([][]string, error) {
	return a.CyclesIn(edgeKinds)
}

// Path finds the shortest path, optionally restricted to one edge kind.
func (a *Analyzer) Path(from, to, via string) ([]string, error) {
	var kinds []string
	if via != "" {
		kinds = []string{via}
	}
	return a.PathBetween(from, to, kinds)
}

func depIDs(deps []Dependency) []string {
	ids := make([]string, len(deps))
	for i, d := range deps {
		ids[i] = d.ID
	}
	return ids
}
