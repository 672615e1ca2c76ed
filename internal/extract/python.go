package extract

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

var pythonLanguage = sitter.NewLanguage(python.Language())

// parsePython parses Python source code into a ModuleDef.
func parsePython(source []byte, path string) (*ModuleDef, error) {
	parser := sitter.NewParser()
	defer parser.Close()

	parser.SetLanguage(pythonLanguage)

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter returned no tree")
	}
	defer tree.Close()

	root := tree.RootNode()

	module := &ModuleDef{
		Name:       moduleName(path),
		Path:       path,
		Language:   "python",
		TotalLines: countLines(source),
	}

	// Module docstring: first expression statement if it is a string.
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(uint(i))
		if child.Kind() == "expression_statement" {
			if str := findChildByType(child, "string"); str != nil {
				module.Docstring = pyString(str, source)
			}
			break
		}
		if child.Kind() != "comment" {
			break
		}
	}

	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(uint(i))
		switch child.Kind() {
		case "import_statement":
			module.Imports = append(module.Imports, pyImport(child, source))
		case "import_from_statement":
			module.Imports = append(module.Imports, pyFromImport(child, source))
		case "class_definition":
			module.Classes = append(module.Classes, pyClass(child, source, nil))
		case "function_definition":
			module.Functions = append(module.Functions, pyFunction(child, source, false, nil))
		case "decorated_definition":
			cls, fn := pyDecorated(child, source, false)
			if cls != nil {
				module.Classes = append(module.Classes, *cls)
			} else if fn != nil {
				module.Functions = append(module.Functions, *fn)
			}
		}
	}

	module.Imports = append(module.Imports, pyDynamicImports(root, source)...)

	for i := range module.Classes {
		module.Classes[i].ReferencedTypes = referencedTypes(&module.Classes[i])
	}

	return module, nil
}

// pyImport extracts a plain import statement.
func pyImport(node *sitter.Node, source []byte) ImportDef {
	imp := ImportDef{LineNumber: startLine(node)}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "dotted_name":
			if imp.Module == "" {
				imp.Module = nodeText(child, source)
			} else {
				imp.Names = append(imp.Names, nodeText(child, source))
			}
		case "aliased_import":
			if name := findChildByType(child, "dotted_name"); name != nil {
				if imp.Module == "" {
					imp.Module = nodeText(name, source)
				} else {
					imp.Names = append(imp.Names, nodeText(name, source))
				}
			}
			if alias := findChildByType(child, "identifier"); alias != nil {
				imp.Alias = nodeText(alias, source)
			}
		}
	}

	return imp
}

// pyFromImport extracts a from...import statement.
func pyFromImport(node *sitter.Node, source []byte) ImportDef {
	imp := ImportDef{IsFrom: true, LineNumber: startLine(node)}
	seenImportKeyword := false

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "import":
			seenImportKeyword = true
		case "dotted_name":
			if !seenImportKeyword {
				imp.Module = nodeText(child, source)
			} else {
				imp.Names = append(imp.Names, nodeText(child, source))
			}
		case "relative_import":
			imp.Module = nodeText(child, source)
		case "identifier":
			if seenImportKeyword {
				imp.Names = append(imp.Names, nodeText(child, source))
			}
		case "aliased_import":
			if name := child.Child(0); name != nil {
				imp.Names = append(imp.Names, nodeText(name, source))
			}
			for j := 1; j < int(child.ChildCount()); j++ {
				if c := child.Child(uint(j)); c.Kind() == "identifier" {
					imp.Alias = nodeText(c, source)
				}
			}
		case "wildcard_import":
			imp.Names = append(imp.Names, "*")
		}
	}

	return imp
}

// pyClass extracts a class definition with its methods and attributes.
func pyClass(node *sitter.Node, source []byte, decorators []string) ClassDef {
	class := ClassDef{
		Decorators: decorators,
		StartLine:  startLine(node),
		EndLine:    endLine(node),
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "identifier":
			class.Name = nodeText(child, source)
		case "argument_list":
			for j := 0; j < int(child.ChildCount()); j++ {
				arg := child.Child(uint(j))
				if arg.Kind() == "identifier" || arg.Kind() == "attribute" {
					class.Bases = append(class.Bases, nodeText(arg, source))
				}
			}
		case "block":
			pyClassBody(child, source, &class)
		}
	}

	return class
}

// pyClassBody extracts methods, attributes and the docstring from a class body.
func pyClassBody(block *sitter.Node, source []byte, class *ClassDef) {
	firstStatement := true

	for i := 0; i < int(block.ChildCount()); i++ {
		child := block.Child(uint(i))
		switch child.Kind() {
		case "expression_statement":
			if firstStatement {
				if str := findChildByType(child, "string"); str != nil {
					class.Docstring = pyString(str, source)
				}
			} else if assignment := findChildByType(child, "assignment"); assignment != nil {
				if left := findChildByType(assignment, "identifier"); left != nil {
					class.Attributes = append(class.Attributes, nodeText(left, source))
				}
			}
		case "function_definition":
			class.Methods = append(class.Methods, pyFunction(child, source, true, nil))
		case "decorated_definition":
			if _, fn := pyDecorated(child, source, true); fn != nil {
				class.Methods = append(class.Methods, *fn)
			}
		}
		firstStatement = false
	}
}

// pyFunction extracts a function or method definition.
func pyFunction(node *sitter.Node, source []byte, isMethod bool, decorators []string) FunctionDef {
	fn := FunctionDef{
		IsMethod:   isMethod,
		Decorators: decorators,
		StartLine:  startLine(node),
		EndLine:    endLine(node),
	}

	for _, dec := range fn.Decorators {
		switch dec {
		case "staticmethod":
			fn.IsStatic = true
		case "classmethod":
			fn.IsClassmethod = true
		case "property":
			fn.IsProperty = true
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "async":
			fn.IsAsync = true
		case "identifier":
			fn.Name = nodeText(child, source)
		case "parameters":
			fn.Parameters = pyParameters(child, source, isMethod)
		case "type":
			fn.ReturnType = nodeText(child, source)
		case "block":
			fn.BodyComplexity = Complexity(child, source, "python")
			fn.BodySource = nodeText(child, source)
			fn.CallSites = pyCallSites(child, source)

			for j := 0; j < int(child.ChildCount()); j++ {
				stmt := child.Child(uint(j))
				if stmt.Kind() == "expression_statement" {
					if str := findChildByType(stmt, "string"); str != nil {
						fn.Docstring = pyString(str, source)
					}
					break
				}
				if stmt.Kind() != "comment" {
					break
				}
			}
		}
	}

	return fn
}

// pyParameters extracts the parameter list. The self/cls receiver is
// stripped for methods.
func pyParameters(node *sitter.Node, source []byte, isMethod bool) []ParameterDef {
	var params []ParameterDef

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "identifier":
			params = append(params, ParameterDef{Name: nodeText(child, source)})
		case "typed_parameter":
			param := ParameterDef{}
			if name := findChildByType(child, "identifier"); name != nil {
				param.Name = nodeText(name, source)
			}
			if typ := findChildByType(child, "type"); typ != nil {
				param.TypeAnnotation = nodeText(typ, source)
			}
			params = append(params, param)
		case "default_parameter", "typed_default_parameter":
			params = append(params, pyDefaultParameter(child, source))
		case "list_splat_pattern":
			name := "args"
			if id := findChildByType(child, "identifier"); id != nil {
				name = nodeText(id, source)
			}
			params = append(params, ParameterDef{Name: name, IsVariadic: true})
		case "dictionary_splat_pattern":
			name := "kwargs"
			if id := findChildByType(child, "identifier"); id != nil {
				name = nodeText(id, source)
			}
			params = append(params, ParameterDef{Name: name, IsKeyword: true})
		}
	}

	if isMethod && len(params) > 0 && (params[0].Name == "self" || params[0].Name == "cls") {
		params = params[1:]
	}
	if len(params) == 0 {
		return nil
	}
	return params
}

// pyDefaultParameter extracts a parameter with a default value, optionally typed.
func pyDefaultParameter(node *sitter.Node, source []byte) ParameterDef {
	param := ParameterDef{}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "identifier":
			if param.Name == "" {
				param.Name = nodeText(child, source)
			}
		case "type":
			param.TypeAnnotation = nodeText(child, source)
		case "=":
			if i+1 < int(node.ChildCount()) {
				param.DefaultValue = nodeText(node.Child(uint(i+1)), source)
			}
		}
	}

	return param
}

// pyDecorated unwraps a decorated definition into a class or function.
func pyDecorated(node *sitter.Node, source []byte, isMethod bool) (*ClassDef, *FunctionDef) {
	var decorators []string

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "decorator":
			dec := strings.TrimPrefix(nodeText(child, source), "@")
			if idx := strings.IndexByte(dec, '('); idx >= 0 {
				dec = dec[:idx]
			}
			decorators = append(decorators, dec)
		case "class_definition":
			cls := pyClass(child, source, decorators)
			return &cls, nil
		case "function_definition":
			fn := pyFunction(child, source, isMethod, decorators)
			return nil, &fn
		}
	}

	return nil, nil
}

// pyCallSites collects textual call sites inside a function body.
func pyCallSites(body *sitter.Node, source []byte) []CallSiteDef {
	var sites []CallSiteDef

	walkTree(body, func(n *sitter.Node) bool {
		// Nested defs keep their own call sites.
		if n != body && (n.Kind() == "function_definition" || n.Kind() == "class_definition") {
			return false
		}
		if n.Kind() != "call" {
			return true
		}

		fn := n.ChildByFieldName("function")
		if fn == nil {
			return true
		}

		switch fn.Kind() {
		case "identifier":
			sites = append(sites, CallSiteDef{Callee: nodeText(fn, source)})
		case "attribute":
			object := fn.ChildByFieldName("object")
			attr := fn.ChildByFieldName("attribute")
			if attr == nil {
				return true
			}
			site := CallSiteDef{
				Callee:       nodeText(attr, source),
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

// pyString extracts string content, removing quotes and prefixes.
func pyString(node *sitter.Node, source []byte) string {
	text := nodeText(node, source)

	// Strip string prefixes (f, r, b and combinations).
	for len(text) > 0 && text[0] != '"' && text[0] != '\'' {
		text = text[1:]
	}

	if strings.HasPrefix(text, `"""`) || strings.HasPrefix(text, "'''") {
		if len(text) >= 6 {
			return strings.TrimSpace(text[3 : len(text)-3])
		}
		return ""
	}
	if len(text) >= 2 && (text[0] == '"' || text[0] == '\'') {
		return text[1 : len(text)-1]
	}
	return text
}

// pyDynamicImports finds importlib.import_module and __import__ calls.
func pyDynamicImports(root *sitter.Node, source []byte) []ImportDef {
	var imports []ImportDef

	walkTree(root, func(n *sitter.Node) bool {
		if n.Kind() != "call" {
			return true
		}

		fn := n.ChildByFieldName("function")
		if fn == nil {
			return true
		}

		funcText := nodeText(fn, source)
		var dynamicSource string
		switch {
		case funcText == "importlib.import_module" || strings.HasSuffix(funcText, ".import_module"):
			dynamicSource = "importlib"
		case funcText == "__import__":
			dynamicSource = "__import__"
		default:
			return true
		}

		args := findChildByType(n, "argument_list")
		if args == nil {
			return true
		}
		var firstArg *sitter.Node
		for i := 0; i < int(args.ChildCount()); i++ {
			child := args.Child(uint(i))
			switch child.Kind() {
			case "(", ")", ",":
				continue
			}
			firstArg = child
			break
		}
		if firstArg == nil {
			return true
		}

		argText := nodeText(firstArg, source)
		imp := ImportDef{
			IsDynamic:     true,
			DynamicSource: dynamicSource,
			LineNumber:    startLine(n),
		}
		if firstArg.Kind() == "string" && !strings.HasPrefix(strings.ToLower(argText), "f'") && !strings.HasPrefix(strings.ToLower(argText), `f"`) {
			// Static string target.
			imp.Module = pyString(firstArg, source)
		} else {
			imp.Module = "<dynamic>"
			imp.DynamicPattern = argText
		}
		imports = append(imports, imp)
		return true
	})

	return imports
}
