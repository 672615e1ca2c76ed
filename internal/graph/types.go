package graph

// NodeKind classifies a node in the code graph.
type NodeKind string

const (
	NodeModule   NodeKind = "module"
	NodeClass    NodeKind = "class"
	NodeFunction NodeKind = "function"
	NodeExternal NodeKind = "external"
)

// EdgeKind classifies a directed relationship between two nodes.
type EdgeKind string

const (
	EdgeContains EdgeKind = "contains"
	EdgeImports  EdgeKind = "imports"
	EdgeInherits EdgeKind = "inherits"
	EdgeUses     EdgeKind = "uses"
	EdgeCalls    EdgeKind = "calls"
)

// EdgeKinds is the closed set of edge kinds, in canonical order.
var EdgeKinds = []EdgeKind{EdgeContains, EdgeImports, EdgeInherits, EdgeUses, EdgeCalls}

// Node is a code entity with a canonical string identity. The id uniquely
// determines (kind, file path, simple name, enclosing class if any) and is
// stable across rebuilds. External nodes carry no file path and no lines.
type Node struct {
	ID            string         `json:"id"`
	Kind          NodeKind       `json:"kind"`
	SimpleName    string         `json:"simple_name"`
	QualifiedName string         `json:"qualified_name,omitempty"`
	FilePath      string         `json:"file_path,omitempty"`
	LineStart     int            `json:"line_start,omitempty"`
	LineEnd       int            `json:"line_end,omitempty"`
	Complexity    int            `json:"complexity"`
	Properties    map[string]any `json:"properties,omitempty"`
}

// Edge is a directed, typed relationship between two node ids. The edge id
// is a deterministic hash of (source, target, kind), so re-inserting the
// same triple is idempotent.
type Edge struct {
	ID         string         `json:"id"`
	SourceID   string         `json:"source_id"`
	TargetID   string         `json:"target_id"`
	Kind       EdgeKind       `json:"kind"`
	Properties map[string]any `json:"properties,omitempty"`
}
