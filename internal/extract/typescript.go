package extract

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

var typescriptLanguage = sitter.NewLanguage(typescript.LanguageTypescript())

// parseTypeScript parses TypeScript source code into a ModuleDef.
func parseTypeScript(source []byte, path string) (*ModuleDef, error) {
	parser := sitter.NewParser()
	defer parser.Close()

	parser.SetLanguage(typescriptLanguage)

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter returned no tree")
	}
	defer tree.Close()

	root := tree.RootNode()

	module := &ModuleDef{
		Name:       moduleName(path),
		Path:       path,
		Language:   "typescript",
		TotalLines: countLines(source),
	}

	tsTopLevel(root, source, module)
	module.Imports = append(module.Imports, tsDynamicImports(root, source)...)

	for i := range module.Classes {
		module.Classes[i].ReferencedTypes = referencedTypes(&module.Classes[i])
	}

	return module, nil
}

// tsTopLevel processes top-level statements, unwrapping export statements.
func tsTopLevel(root *sitter.Node, source []byte, module *ModuleDef) {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(uint(i))
		switch child.Kind() {
		case "import_statement":
			if imp, ok := tsImport(child, source); ok {
				module.Imports = append(module.Imports, imp)
			}
		case "class_declaration":
			module.Classes = append(module.Classes, tsClass(child, source))
		case "abstract_class_declaration":
			cls := tsClass(child, source)
			cls.Decorators = append(cls.Decorators, "abstract")
			module.Classes = append(module.Classes, cls)
		case "interface_declaration":
			module.Classes = append(module.Classes, tsInterface(child, source))
		case "function_declaration":
			module.Functions = append(module.Functions, tsFunction(child, source, false))
		case "lexical_declaration", "variable_declaration":
			tsVariableFunctions(child, source, &module.Functions)
		case "export_statement":
			tsTopLevel(child, source, module)
		}
	}
}

// tsImport extracts an ES import statement.
func tsImport(node *sitter.Node, source []byte) (ImportDef, bool) {
	imp := ImportDef{IsFrom: true, LineNumber: startLine(node)}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "string":
			imp.Module = strings.Trim(nodeText(child, source), `"'`)
		case "import_clause":
			for j := 0; j < int(child.ChildCount()); j++ {
				clause := child.Child(uint(j))
				switch clause.Kind() {
				case "identifier":
					// Default import.
					imp.Names = append(imp.Names, nodeText(clause, source))
				case "named_imports":
					for _, spec := range findChildrenByType(clause, "import_specifier") {
						if name := findChildByType(spec, "identifier"); name != nil {
							imp.Names = append(imp.Names, nodeText(name, source))
						}
					}
				case "namespace_import":
					if id := findChildByType(clause, "identifier"); id != nil {
						imp.Alias = nodeText(id, source)
					}
				}
			}
		}
	}

	return imp, imp.Module != ""
}

// tsClass extracts a class declaration.
func tsClass(node *sitter.Node, source []byte) ClassDef {
	class := ClassDef{
		StartLine: startLine(node),
		EndLine:   endLine(node),
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "type_identifier", "identifier":
			if class.Name == "" {
				class.Name = nodeText(child, source)
			}
		case "class_heritage":
			for j := 0; j < int(child.ChildCount()); j++ {
				clause := child.Child(uint(j))
				if clause.Kind() == "extends_clause" || clause.Kind() == "implements_clause" {
					for k := 0; k < int(clause.ChildCount()); k++ {
						inner := clause.Child(uint(k))
						if inner.Kind() == "type_identifier" || inner.Kind() == "identifier" {
							class.Bases = append(class.Bases, nodeText(inner, source))
						}
					}
				}
			}
		case "class_body":
			for j := 0; j < int(child.ChildCount()); j++ {
				member := child.Child(uint(j))
				switch member.Kind() {
				case "method_definition":
					class.Methods = append(class.Methods, tsMethod(member, source))
				case "public_field_definition", "field_definition":
					if name := findChildByType(member, "property_identifier"); name != nil {
						class.Attributes = append(class.Attributes, nodeText(name, source))
					}
				}
			}
		}
	}

	return class
}

// tsInterface projects an interface declaration onto ClassDef with an
// "interface" tag.
func tsInterface(node *sitter.Node, source []byte) ClassDef {
	class := ClassDef{
		Decorators: []string{"interface"},
		StartLine:  startLine(node),
		EndLine:    endLine(node),
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "type_identifier", "identifier":
			if class.Name == "" {
				class.Name = nodeText(child, source)
			}
		case "extends_type_clause":
			for j := 0; j < int(child.ChildCount()); j++ {
				if inner := child.Child(uint(j)); inner.Kind() == "type_identifier" {
					class.Bases = append(class.Bases, nodeText(inner, source))
				}
			}
		case "object_type", "interface_body":
			for j := 0; j < int(child.ChildCount()); j++ {
				member := child.Child(uint(j))
				switch member.Kind() {
				case "method_signature":
					method := FunctionDef{
						IsMethod:  true,
						StartLine: startLine(member),
						EndLine:   endLine(member),
					}
					for k := 0; k < int(member.ChildCount()); k++ {
						inner := member.Child(uint(k))
						switch inner.Kind() {
						case "property_identifier":
							method.Name = nodeText(inner, source)
						case "formal_parameters":
							method.Parameters = tsParameters(inner, source)
						case "type_annotation":
							method.ReturnType = tsTypeAnnotation(inner, source)
						}
					}
					if method.Name != "" {
						class.Methods = append(class.Methods, method)
					}
				case "property_signature":
					if name := findChildByType(member, "property_identifier"); name != nil {
						class.Attributes = append(class.Attributes, nodeText(name, source))
					}
				}
			}
		}
	}

	return class
}

// tsMethod extracts a method definition from a class body.
func tsMethod(node *sitter.Node, source []byte) FunctionDef {
	fn := FunctionDef{
		IsMethod:  true,
		StartLine: startLine(node),
		EndLine:   endLine(node),
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "property_identifier", "identifier":
			if fn.Name == "" {
				fn.Name = nodeText(child, source)
			}
		case "formal_parameters":
			fn.Parameters = tsParameters(child, source)
		case "type_annotation":
			fn.ReturnType = tsTypeAnnotation(child, source)
		case "statement_block":
			fn.BodyComplexity = Complexity(child, source, "typescript")
			fn.BodySource = nodeText(child, source)
			fn.CallSites = tsCallSites(child, source)
		case "async":
			fn.IsAsync = true
		case "static":
			fn.IsStatic = true
		}
	}

	return fn
}

// tsFunction extracts a function declaration.
func tsFunction(node *sitter.Node, source []byte, isMethod bool) FunctionDef {
	fn := FunctionDef{
		IsMethod:  isMethod,
		StartLine: startLine(node),
		EndLine:   endLine(node),
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "identifier":
			if fn.Name == "" {
				fn.Name = nodeText(child, source)
			}
		case "formal_parameters":
			fn.Parameters = tsParameters(child, source)
		case "type_annotation":
			fn.ReturnType = tsTypeAnnotation(child, source)
		case "statement_block":
			fn.BodyComplexity = Complexity(child, source, "typescript")
			fn.BodySource = nodeText(child, source)
			fn.CallSites = tsCallSites(child, source)
		case "async":
			fn.IsAsync = true
		}
	}

	return fn
}

// tsVariableFunctions lifts arrow functions bound to const/let/var names.
func tsVariableFunctions(node *sitter.Node, source []byte, functions *[]FunctionDef) {
	for _, declarator := range findChildrenByType(node, "variable_declarator") {
		arrow := findChildByType(declarator, "arrow_function")
		if arrow == nil {
			continue
		}
		fn := tsArrowFunction(arrow, source)
		if name := findChildByType(declarator, "identifier"); name != nil {
			fn.Name = nodeText(name, source)
		}
		if fn.Name != "" {
			*functions = append(*functions, fn)
		}
	}
}

// tsArrowFunction extracts an arrow function expression.
func tsArrowFunction(node *sitter.Node, source []byte) FunctionDef {
	fn := FunctionDef{
		StartLine: startLine(node),
		EndLine:   endLine(node),
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "formal_parameters":
			fn.Parameters = tsParameters(child, source)
		case "identifier":
			// Single-parameter shorthand: x => ...
			if len(fn.Parameters) == 0 {
				fn.Parameters = []ParameterDef{{Name: nodeText(child, source)}}
			}
		case "type_annotation":
			fn.ReturnType = tsTypeAnnotation(child, source)
		case "statement_block":
			fn.BodyComplexity = Complexity(child, source, "typescript")
			fn.BodySource = nodeText(child, source)
			fn.CallSites = tsCallSites(child, source)
		case "async":
			fn.IsAsync = true
		}
	}

	return fn
}

// tsParameters extracts the parameter list from formal_parameters.
func tsParameters(node *sitter.Node, source []byte) []ParameterDef {
	var params []ParameterDef

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "identifier":
			params = append(params, ParameterDef{Name: nodeText(child, source)})
		case "required_parameter", "optional_parameter":
			param := ParameterDef{}
			for j := 0; j < int(child.ChildCount()); j++ {
				inner := child.Child(uint(j))
				switch inner.Kind() {
				case "identifier":
					param.Name = nodeText(inner, source)
				case "type_annotation":
					param.TypeAnnotation = tsTypeAnnotation(inner, source)
				case "rest_pattern":
					if id := findChildByType(inner, "identifier"); id != nil {
						param.Name = nodeText(id, source)
						param.IsVariadic = true
					}
				}
				if inner.Kind() == "=" && j+1 < int(child.ChildCount()) {
					param.DefaultValue = nodeText(child.Child(uint(j+1)), source)
				}
			}
			if param.Name != "" {
				params = append(params, param)
			}
		case "rest_pattern":
			if id := findChildByType(child, "identifier"); id != nil {
				params = append(params, ParameterDef{Name: nodeText(id, source), IsVariadic: true})
			}
		}
	}

	return params
}

// tsTypeAnnotation strips the leading ":" from a type_annotation node.
func tsTypeAnnotation(node *sitter.Node, source []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		if child.Kind() != ":" {
			return nodeText(child, source)
		}
	}
	return ""
}

// tsCallSites collects textual call sites inside a function body.
func tsCallSites(body *sitter.Node, source []byte) []CallSiteDef {
	var sites []CallSiteDef

	walkTree(body, func(n *sitter.Node) bool {
		// Nested function bodies keep their own call sites.
		if n != body {
			switch n.Kind() {
			case "function_declaration", "arrow_function", "method_definition", "class_declaration":
				return false
			}
		}
		if n.Kind() != "call_expression" {
			return true
		}

		fn := n.ChildByFieldName("function")
		if fn == nil {
			return true
		}

		switch fn.Kind() {
		case "identifier":
			callee := nodeText(fn, source)
			if callee == "require" || callee == "import" {
				return true
			}
			sites = append(sites, CallSiteDef{Callee: callee})
		case "member_expression":
			object := fn.ChildByFieldName("object")
			property := fn.ChildByFieldName("property")
			if property == nil {
				return true
			}
			site := CallSiteDef{
				Callee:       nodeText(property, source),
				IsMethodCall: true,
			}
			if object != nil {
				site.Receiver = nodeText(object, source)
			}
			sites = append(sites, site)
		}
		return true
	})

	return sites
}

// tsDynamicImports finds dynamic import() and require() calls.
func tsDynamicImports(root *sitter.Node, source []byte) []ImportDef {
	var imports []ImportDef

	walkTree(root, func(n *sitter.Node) bool {
		if n.Kind() != "call_expression" {
			return true
		}

		fn := findChildByType(n, "import")
		isRequire := false
		if fn == nil {
			fn = findChildByType(n, "identifier")
			if fn == nil || nodeText(fn, source) != "require" {
				return true
			}
			isRequire = true
		}

		args := findChildByType(n, "arguments")
		if args == nil {
			return true
		}

		for i := 0; i < int(args.ChildCount()); i++ {
			arg := args.Child(uint(i))
			switch arg.Kind() {
			case "string":
				if isRequire {
					// Static require is a regular import, recorded below.
					imports = append(imports, ImportDef{
						Module:     strings.Trim(nodeText(arg, source), `"'`),
						LineNumber: startLine(n),
					})
					return true
				}
				imports = append(imports, ImportDef{
					Module:        strings.Trim(nodeText(arg, source), `"'`),
					IsDynamic:     true,
					DynamicSource: "import()",
					LineNumber:    startLine(n),
				})
				return true
			case "template_string", "identifier", "member_expression", "binary_expression", "call_expression":
				src := "import()"
				if isRequire {
					src = "require()"
				}
				imports = append(imports, ImportDef{
					Module:         "<dynamic>",
					IsDynamic:      true,
					DynamicSource:  src,
					DynamicPattern: nodeText(arg, source),
					LineNumber:     startLine(n),
				})
				return true
			}
		}
		return true
	})

	return imports
}
