package graph

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Node id scheme. Ids are part of the external contract: deterministic,
// collision-free within a repo, and stable across rebuilds.
//
//	mod:<relpath>                       module
//	cls:<relpath>:<name>                class
//	fn:<relpath>:<name>                 module-level function
//	fn:<relpath>:<class>.<method>       method
//	ext:<symbol>                        unresolved external reference

// ModuleID returns the node id for a module at the given relative path.
func ModuleID(relPath string) string {
	return "mod:" + relPath
}

// ClassID returns the node id for a class.
func ClassID(relPath, name string) string {
	return fmt.Sprintf("cls:%s:%s", relPath, name)
}

// FunctionID returns the node id for a module-level function.
func FunctionID(relPath, name string) string {
	return fmt.Sprintf("fn:%s:%s", relPath, name)
}

// MethodID returns the node id for a method of a class.
func MethodID(relPath, class, name string) string {
	return fmt.Sprintf("fn:%s:%s.%s", relPath, class, name)
}

// ExternalID returns the node id for an unresolved external symbol.
func ExternalID(symbol string) string {
	return "ext:" + symbol
}

// EdgeID returns the deterministic id for an edge triple.
func EdgeID(sourceID, targetID string, kind EdgeKind) string {
	h := xxhash.New()
	h.WriteString(sourceID)
	h.WriteString("|")
	h.WriteString(targetID)
	h.WriteString("|")
	h.WriteString(string(kind))
	return fmt.Sprintf("%016x", h.Sum64())
}

// NewEdge builds an edge with its deterministic id.
func NewEdge(sourceID, targetID string, kind EdgeKind) Edge {
	return Edge{
		ID:       EdgeID(sourceID, targetID, kind),
		SourceID: sourceID,
		TargetID: targetID,
		Kind:     kind,
	}
}

// moduleSimpleName derives the simple name of a module from its path
// (file stem).
func moduleSimpleName(relPath string) string {
	base := relPath
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndexByte(base, '.'); idx > 0 {
		base = base[:idx]
	}
	return base
}

// NewModuleNode builds the node for a module (source file).
func NewModuleNode(relPath string) Node {
	return Node{
		ID:         ModuleID(relPath),
		Kind:       NodeModule,
		SimpleName: moduleSimpleName(relPath),
		FilePath:   relPath,
	}
}

// NewClassNode builds the node for a class-like entity.
func NewClassNode(relPath, name string, lineStart, lineEnd int, properties map[string]any) Node {
	return Node{
		ID:            ClassID(relPath, name),
		Kind:          NodeClass,
		SimpleName:    name,
		QualifiedName: relPath + ":" + name,
		FilePath:      relPath,
		LineStart:     lineStart,
		LineEnd:       lineEnd,
		Properties:    properties,
	}
}

// NewFunctionNode builds the node for a function or method. class is empty
// for module-level functions.
func NewFunctionNode(relPath, name, class string, lineStart, lineEnd, complexity int, properties map[string]any) Node {
	node := Node{
		Kind:       NodeFunction,
		SimpleName: name,
		FilePath:   relPath,
		LineStart:  lineStart,
		LineEnd:    lineEnd,
		Complexity: complexity,
		Properties: properties,
	}
	if class != "" {
		node.ID = MethodID(relPath, class, name)
		node.QualifiedName = fmt.Sprintf("%s:%s.%s", relPath, class, name)
	} else {
		node.ID = FunctionID(relPath, name)
		node.QualifiedName = relPath + ":" + name
	}
	return node
}

// NewExternalNode builds a placeholder node for an unresolved reference.
func NewExternalNode(symbol string) Node {
	return Node{
		ID:         ExternalID(symbol),
		Kind:       NodeExternal,
		SimpleName: symbol,
	}
}
