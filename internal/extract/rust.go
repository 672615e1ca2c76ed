package extract

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
)

var rustLanguage = sitter.NewLanguage(rust.Language())

// Rust node kinds that denote a type in return/parameter position.
var rustTypeKinds = map[string]bool{
	"type_identifier":        true,
	"generic_type":           true,
	"reference_type":         true,
	"tuple_type":             true,
	"primitive_type":         true,
	"scoped_type_identifier": true,
	"unit_type":              true,
	"pointer_type":           true,
	"array_type":             true,
}

// parseRust parses Rust source code into a ModuleDef. Structs, enums and
// traits project onto ClassDef with a construct tag in Decorators; methods
// declared in impl blocks are reattached to the type they target, or to a
// synthetic class when the target type is not declared in this file.
func parseRust(source []byte, path string) (*ModuleDef, error) {
	parser := sitter.NewParser()
	defer parser.Close()

	parser.SetLanguage(rustLanguage)

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter returned no tree")
	}
	defer tree.Close()

	root := tree.RootNode()

	module := &ModuleDef{
		Name:       moduleName(path),
		Path:       path,
		Language:   "rust",
		TotalLines: countLines(source),
	}

	// First pass: declarations. Impl methods are collected per target type
	// and attached afterwards.
	implMethods := make(map[string][]FunctionDef)
	implOrder := []string{}

	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(uint(i))
		switch child.Kind() {
		case "use_declaration":
			if imp, ok := rustUse(child, source); ok {
				module.Imports = append(module.Imports, imp)
			}
		case "function_item":
			module.Functions = append(module.Functions, rustFunction(child, source, false))
		case "struct_item":
			module.Classes = append(module.Classes, rustStruct(child, source))
		case "enum_item":
			module.Classes = append(module.Classes, rustEnum(child, source))
		case "trait_item":
			module.Classes = append(module.Classes, rustTrait(child, source))
		case "impl_item":
			target, methods := rustImpl(child, source)
			if target != "" && len(methods) > 0 {
				if _, seen := implMethods[target]; !seen {
					implOrder = append(implOrder, target)
				}
				implMethods[target] = append(implMethods[target], methods...)
			}
		case "mod_item":
			if id := findChildByType(child, "identifier"); id != nil {
				module.Imports = append(module.Imports, ImportDef{
					Module:     nodeText(id, source),
					LineNumber: startLine(child),
				})
			}
		}
	}

	// Second pass: attach impl methods to their types.
	for i := range module.Classes {
		if methods, ok := implMethods[module.Classes[i].Name]; ok {
			module.Classes[i].Methods = append(module.Classes[i].Methods, methods...)
			delete(implMethods, module.Classes[i].Name)
		}
	}

	// Impl blocks targeting types not declared in this file get a synthetic
	// class holding the methods.
	for _, target := range implOrder {
		methods, ok := implMethods[target]
		if !ok || len(methods) == 0 {
			continue
		}
		module.Classes = append(module.Classes, ClassDef{
			Name:       target,
			Decorators: []string{"impl"},
			Methods:    methods,
			StartLine:  methods[0].StartLine,
			EndLine:    methods[len(methods)-1].EndLine,
		})
	}

	for i := range module.Classes {
		module.Classes[i].ReferencedTypes = referencedTypes(&module.Classes[i])
	}

	return module, nil
}

// rustUse extracts a use declaration. Paths are dotted for uniformity with
// the other languages.
func rustUse(node *sitter.Node, source []byte) (ImportDef, bool) {
	imp := ImportDef{LineNumber: startLine(node)}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "scoped_identifier", "identifier":
			imp.Module = strings.ReplaceAll(nodeText(child, source), "::", ".")
		case "scoped_use_list":
			for j := 0; j < int(child.ChildCount()); j++ {
				inner := child.Child(uint(j))
				switch inner.Kind() {
				case "scoped_identifier", "identifier":
					imp.Module = strings.ReplaceAll(nodeText(inner, source), "::", ".")
				case "use_list":
					rustUseList(inner, source, &imp.Names)
				}
			}
		case "use_as_clause":
			for j := 0; j < int(child.ChildCount()); j++ {
				inner := child.Child(uint(j))
				switch inner.Kind() {
				case "scoped_identifier":
					if imp.Module == "" {
						imp.Module = strings.ReplaceAll(nodeText(inner, source), "::", ".")
					}
				case "identifier":
					if imp.Module == "" {
						imp.Module = nodeText(inner, source)
					} else {
						imp.Alias = nodeText(inner, source)
					}
				}
			}
		case "use_list":
			rustUseList(child, source, &imp.Names)
		case "use_wildcard":
			imp.Names = append(imp.Names, "*")
		}
	}

	if imp.Module == "" && len(imp.Names) == 0 {
		return imp, false
	}
	imp.IsFrom = len(imp.Names) > 0
	return imp, true
}

// rustUseList collects names from `use foo::{bar, baz}`.
func rustUseList(node *sitter.Node, source []byte, names *[]string) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "identifier", "scoped_identifier":
			*names = append(*names, strings.ReplaceAll(nodeText(child, source), "::", "."))
		case "use_as_clause":
			if id := findChildByType(child, "identifier"); id != nil {
				*names = append(*names, nodeText(id, source))
			}
		case "self":
			*names = append(*names, "self")
		}
	}
}

// rustFunction extracts a function item or trait method signature.
func rustFunction(node *sitter.Node, source []byte, isMethod bool) FunctionDef {
	fn := FunctionDef{
		IsMethod:  isMethod,
		StartLine: startLine(node),
		EndLine:   endLine(node),
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		switch {
		case child.Kind() == "visibility_modifier":
			fn.Decorators = append(fn.Decorators, "pub")
		case child.Kind() == "function_modifiers":
			mods := nodeText(child, source)
			if strings.Contains(mods, "async") {
				fn.IsAsync = true
			}
			if strings.Contains(mods, "const") {
				fn.Decorators = append(fn.Decorators, "const")
			}
			if strings.Contains(mods, "unsafe") {
				fn.Decorators = append(fn.Decorators, "unsafe")
			}
		case child.Kind() == "identifier":
			if fn.Name == "" {
				fn.Name = nodeText(child, source)
			}
		case child.Kind() == "parameters":
			fn.Parameters, fn.IsStatic = rustParameters(child, source, isMethod)
		case rustTypeKinds[child.Kind()]:
			if fn.ReturnType == "" {
				fn.ReturnType = nodeText(child, source)
			}
		case child.Kind() == "block":
			fn.BodyComplexity = Complexity(child, source, "rust")
			fn.BodySource = nodeText(child, source)
			fn.CallSites = rustCallSites(child, source)
		}
	}

	return fn
}

// rustParameters extracts the parameter list. The self receiver is stripped;
// its absence on a method marks the method as associated (static).
func rustParameters(node *sitter.Node, source []byte, isMethod bool) ([]ParameterDef, bool) {
	var params []ParameterDef
	hasSelf := false

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "self_parameter":
			hasSelf = true
		case "parameter":
			param := ParameterDef{}
			for j := 0; j < int(child.ChildCount()); j++ {
				inner := child.Child(uint(j))
				switch {
				case inner.Kind() == "identifier":
					if param.Name == "" {
						param.Name = nodeText(inner, source)
					}
				case rustTypeKinds[inner.Kind()]:
					param.TypeAnnotation = nodeText(inner, source)
				}
			}
			if param.Name != "" && param.Name != "self" {
				params = append(params, param)
			}
		}
	}

	return params, isMethod && !hasSelf
}

// rustStruct projects a struct item onto ClassDef tagged "struct".
func rustStruct(node *sitter.Node, source []byte) ClassDef {
	class := ClassDef{
		Decorators: []string{"struct"},
		StartLine:  startLine(node),
		EndLine:    endLine(node),
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "visibility_modifier":
			class.Decorators = append(class.Decorators, "pub")
		case "type_identifier":
			if class.Name == "" {
				class.Name = nodeText(child, source)
			}
		case "field_declaration_list":
			for _, field := range findChildrenByType(child, "field_declaration") {
				if id := findChildByType(field, "field_identifier"); id != nil {
					class.Attributes = append(class.Attributes, nodeText(id, source))
				}
			}
		}
	}

	return class
}

// rustEnum projects an enum item onto ClassDef tagged "enum"; variants land
// in Attributes.
func rustEnum(node *sitter.Node, source []byte) ClassDef {
	class := ClassDef{
		Decorators: []string{"enum"},
		StartLine:  startLine(node),
		EndLine:    endLine(node),
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "visibility_modifier":
			class.Decorators = append(class.Decorators, "pub")
		case "type_identifier":
			if class.Name == "" {
				class.Name = nodeText(child, source)
			}
		case "enum_variant_list":
			for _, variant := range findChildrenByType(child, "enum_variant") {
				if id := findChildByType(variant, "identifier"); id != nil {
					class.Attributes = append(class.Attributes, nodeText(id, source))
				}
			}
		}
	}

	return class
}

// rustTrait projects a trait item onto ClassDef tagged "trait"; supertraits
// become bases.
func rustTrait(node *sitter.Node, source []byte) ClassDef {
	class := ClassDef{
		Decorators: []string{"trait"},
		StartLine:  startLine(node),
		EndLine:    endLine(node),
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "visibility_modifier":
			class.Decorators = append(class.Decorators, "pub")
		case "type_identifier":
			if class.Name == "" {
				class.Name = nodeText(child, source)
			}
		case "trait_bounds":
			for j := 0; j < int(child.ChildCount()); j++ {
				if inner := child.Child(uint(j)); inner.Kind() == "type_identifier" {
					class.Bases = append(class.Bases, nodeText(inner, source))
				}
			}
		case "declaration_list":
			for j := 0; j < int(child.ChildCount()); j++ {
				inner := child.Child(uint(j))
				if inner.Kind() == "function_signature_item" || inner.Kind() == "function_item" {
					class.Methods = append(class.Methods, rustFunction(inner, source, true))
				}
			}
		}
	}

	return class
}

// rustImpl extracts an impl block: the target type name (generics stripped)
// and its methods. A trait impl tags each method with the trait name.
func rustImpl(node *sitter.Node, source []byte) (string, []FunctionDef) {
	target := ""
	traitName := ""
	var methods []FunctionDef

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "type_identifier", "generic_type":
			name := nodeText(child, source)
			if idx := strings.IndexByte(name, '<'); idx >= 0 {
				name = name[:idx]
			}
			// In `impl Trait for Type`, the trait identifier comes first and
			// the target follows the `for` keyword.
			if target == "" {
				target = name
			} else {
				traitName = target
				target = name
			}
		case "declaration_list":
			for j := 0; j < int(child.ChildCount()); j++ {
				inner := child.Child(uint(j))
				if inner.Kind() != "function_item" {
					continue
				}
				method := rustFunction(inner, source, true)
				if traitName != "" {
					method.Decorators = append(method.Decorators, "impl:"+traitName)
				}
				methods = append(methods, method)
			}
		}
	}

	return target, methods
}

// rustCallSites collects textual call sites inside a function body.
func rustCallSites(body *sitter.Node, source []byte) []CallSiteDef {
	var sites []CallSiteDef

	walkTree(body, func(n *sitter.Node) bool {
		if n != body && (n.Kind() == "function_item" || n.Kind() == "closure_expression") {
			return true // closures share the enclosing function's call sites
		}

		switch n.Kind() {
		case "call_expression":
			fn := n.ChildByFieldName("function")
			if fn == nil {
				return true
			}
			switch fn.Kind() {
			case "identifier":
				sites = append(sites, CallSiteDef{Callee: nodeText(fn, source)})
			case "scoped_identifier":
				// Type::method or module::function
				nameNode := fn.ChildByFieldName("name")
				pathNode := fn.ChildByFieldName("path")
				if nameNode == nil {
					return true
				}
				site := CallSiteDef{Callee: nodeText(nameNode, source)}
				if pathNode != nil {
					site.Receiver = nodeText(pathNode, source)
					site.IsMethodCall = true
				}
				sites = append(sites, site)
			case "field_expression":
				// receiver.method(...)
				value := fn.ChildByFieldName("value")
				field := fn.ChildByFieldName("field")
				if field == nil {
					return true
				}
				site := CallSiteDef{
					Callee:       nodeText(field, source),
					IsMethodCall: true,
				}
				if value != nil {
					site.Receiver = nodeText(value, source)
				}
				sites = append(sites, site)
			}
		}
		return true
	})

	return sites
}
