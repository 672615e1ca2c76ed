package extract

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// nodeText extracts the text content of a tree-sitter node.
func nodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// startLine returns the 1-indexed start line of a node.
func startLine(node *sitter.Node) int {
	return int(node.StartPosition().Row) + 1
}

// endLine returns the 1-indexed end line of a node.
func endLine(node *sitter.Node) int {
	return int(node.EndPosition().Row) + 1
}

// walkTree recursively walks a tree-sitter tree and calls the visitor for
// each node. Returning false from the visitor stops descent into that node.
func walkTree(node *sitter.Node, visitor func(*sitter.Node) bool) {
	if node == nil {
		return
	}

	if !visitor(node) {
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		walkTree(node.Child(uint(i)), visitor)
	}
}

// findChildByType finds the first child node with the given type.
func findChildByType(node *sitter.Node, nodeType string) *sitter.Node {
	if node == nil {
		return nil
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		if child.Kind() == nodeType {
			return child
		}
	}
	return nil
}

// findChildrenByType finds all child nodes with the given type.
func findChildrenByType(node *sitter.Node, nodeType string) []*sitter.Node {
	var results []*sitter.Node
	if node == nil {
		return results
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		if child.Kind() == nodeType {
			results = append(results, child)
		}
	}
	return results
}

// countLines counts the number of lines in a source string.
func countLines(source []byte) int {
	if len(source) == 0 {
		return 0
	}
	n := strings.Count(string(source), "\n")
	if source[len(source)-1] != '\n' {
		n++
	}
	return n
}

// moduleName derives a module name from a file path (the file stem).
func moduleName(path string) string {
	base := path
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndexByte(base, '.'); idx > 0 {
		base = base[:idx]
	}
	return base
}

// stripTypeSyntax reduces a type annotation to its bare type names:
// generics, nullability markers and reference syntax are stripped.
// "Optional[List[User]]" yields {"Optional", "List", "User"};
// "&mut Vec<Token>" yields {"Vec", "Token"}.
func stripTypeSyntax(annotation string) []string {
	var names []string
	var current strings.Builder
	flush := func() {
		name := current.String()
		current.Reset()
		if name == "" {
			return
		}
		// Keep only the last segment of dotted / path-qualified names.
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			name = name[idx+1:]
		}
		if idx := strings.LastIndex(name, "::"); idx >= 0 {
			name = name[idx+2:]
		}
		if name != "" && isTypeName(name) {
			names = append(names, name)
		}
	}
	for _, r := range annotation {
		switch {
		case r == '_' || r == '.' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			current.WriteRune(r)
		case r == ':':
			current.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return names
}

// isTypeName filters out keywords and primitives that show up inside type
// annotations but carry no cross-class signal.
func isTypeName(name string) bool {
	if name == "" {
		return false
	}
	switch name {
	case "mut", "dyn", "impl", "ref", "self", "Self",
		"str", "int", "float", "bool", "bytes", "None", "Any",
		"string", "number", "boolean", "void", "null", "undefined", "any", "unknown", "never", "object",
		"i8", "i16", "i32", "i64", "u8", "u16", "u32", "u64", "usize", "isize", "f32", "f64", "char", "unit":
		return false
	}
	// Bare lowercase single letters are usually generics (T is uppercase but
	// single-letter names carry no resolvable signal either way).
	if len(name) == 1 {
		return false
	}
	return true
}

// referencedTypes unions the bare type names from all method parameter and
// return annotations of a class, excluding the class's own name.
func referencedTypes(class *ClassDef) []string {
	seen := make(map[string]bool)
	var result []string
	add := func(annotation string) {
		for _, name := range stripTypeSyntax(annotation) {
			if name == class.Name || seen[name] {
				continue
			}
			seen[name] = true
			result = append(result, name)
		}
	}
	for i := range class.Methods {
		method := &class.Methods[i]
		for _, param := range method.Parameters {
			if param.TypeAnnotation != "" {
				add(param.TypeAnnotation)
			}
		}
		if method.ReturnType != "" {
			add(method.ReturnType)
		}
	}
	return result
}
