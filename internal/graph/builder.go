package graph

import (
	"strings"

	"github.com/0ximu/mu/internal/extract"
)

// Lookups hold the name resolution tables the builder uses to connect
// cross-file references. For a full build they are derived from the parsed
// modules; for an incremental update they are derived from the current
// contents of storage.
type Lookups struct {
	// Classes maps simple name and "relpath:name" to class node id. On
	// simple-name collision the last insertion wins; the qualified form
	// disambiguates when the consumer has context.
	Classes map[string]string

	// Functions maps simple name, qualified name and node id to function
	// node id.
	Functions map[string]string

	// Modules maps import-path spellings (relative path, extensionless stem,
	// dotted stem, bare file stem) to module node id.
	Modules map[string]string

	// modulePaths maps module node id back to its relative path, for call
	// resolution through imports.
	modulePaths map[string]string
}

// NewLookups returns empty lookup tables.
func NewLookups() *Lookups {
	return &Lookups{
		Classes:     make(map[string]string),
		Functions:   make(map[string]string),
		Modules:     make(map[string]string),
		modulePaths: make(map[string]string),
	}
}

// AddModule registers a module under the spellings an import statement may
// use to reach it. On collision (two files with the same stem) the last
// insertion wins, matching the class lookup policy.
func (l *Lookups) AddModule(relPath string) {
	id := ModuleID(relPath)
	l.modulePaths[id] = relPath
	l.Modules[relPath] = id

	stem := relPath
	if idx := strings.LastIndexByte(stem, '.'); idx > strings.LastIndexByte(stem, '/') {
		stem = stem[:idx]
	}
	l.Modules[stem] = id
	l.Modules[strings.ReplaceAll(stem, "/", ".")] = id
	if idx := strings.LastIndexByte(stem, '/'); idx >= 0 {
		l.Modules[stem[idx+1:]] = id
	}
}

// AddClass registers a class node id under its simple and qualified names.
func (l *Lookups) AddClass(relPath, name, id string) {
	l.Classes[name] = id
	l.Classes[relPath+":"+name] = id
}

// AddFunction registers a function node under its simple name, qualified
// name and id.
func (l *Lookups) AddFunction(node *Node) {
	l.Functions[node.SimpleName] = node.ID
	if node.QualifiedName != "" {
		l.Functions[node.QualifiedName] = node.ID
	}
	l.Functions[node.ID] = node.ID
}

// LookupsFromNodes rebuilds resolution tables from stored nodes. Used by the
// incremental driver so that single-module rebuilds resolve against the
// whole graph.
func LookupsFromNodes(modules, classes, functions []Node) *Lookups {
	lk := NewLookups()
	for i := range modules {
		if modules[i].FilePath != "" {
			lk.AddModule(modules[i].FilePath)
		}
	}
	for i := range classes {
		node := &classes[i]
		lk.Classes[node.SimpleName] = node.ID
		if node.QualifiedName != "" {
			lk.Classes[node.QualifiedName] = node.ID
		}
	}
	for i := range functions {
		lk.AddFunction(&functions[i])
	}
	return lk
}

// Result is the outcome of a build: the node and edge sets plus call
// resolution counters.
type Result struct {
	Nodes             []Node
	Edges             []Edge
	CallSitesSeen     int
	CallSitesResolved int
}

// Build reduces a collection of parsed modules into nodes and edges using
// three strictly ordered passes: class lookup, structural nodes and edges,
// then function lookup and call resolution. Module paths must already be
// repository-relative.
func Build(modules []*extract.ModuleDef) *Result {
	return BuildWithLookups(modules, NewLookups())
}

// BuildWithLookups runs the same three passes seeded with externally
// supplied lookups. The incremental driver seeds them from the current
// contents of storage so single-batch rebuilds resolve against the whole
// graph.
func BuildWithLookups(modules []*extract.ModuleDef, lookups *Lookups) *Result {
	// Pass 0: class and module lookups across all modules, so inheritance,
	// type-use and import targets resolve regardless of declaration order.
	for _, module := range modules {
		lookups.AddModule(module.Path)
		for i := range module.Classes {
			lookups.AddClass(module.Path, module.Classes[i].Name, ClassID(module.Path, module.Classes[i].Name))
		}
	}

	builder := newBuilder(lookups)

	// Pass 1: nodes and structural edges.
	for _, module := range modules {
		builder.addModule(module)
	}

	// Function lookup needs the full inventory of functions, including
	// methods of classes defined later in the iteration.
	for i := range builder.nodes {
		if builder.nodes[i].Kind == NodeFunction {
			lookups.AddFunction(&builder.nodes[i])
		}
	}

	// Pass 2: call edges.
	for _, module := range modules {
		builder.addCalls(module)
	}

	return builder.result()
}

// BuildModule builds nodes and edges for a single module against externally
// supplied lookups (the incremental path). Call edges are resolved in the
// same invocation because the lookups already cover the whole graph.
func BuildModule(module *extract.ModuleDef, lookups *Lookups) *Result {
	return BuildWithLookups([]*extract.ModuleDef{module}, lookups)
}

// builder accumulates nodes and edges, deduplicating by id so the final set
// is identical across runs on identical inputs.
type builder struct {
	lookups *Lookups

	nodes     []Node
	nodeIndex map[string]int
	edges     []Edge
	edgeSeen  map[string]bool

	callSitesSeen     int
	callSitesResolved int
}

func newBuilder(lookups *Lookups) *builder {
	return &builder{
		lookups:   lookups,
		nodeIndex: make(map[string]int),
		edgeSeen:  make(map[string]bool),
	}
}

func (b *builder) addNode(node Node) {
	if _, ok := b.nodeIndex[node.ID]; ok {
		return
	}
	b.nodeIndex[node.ID] = len(b.nodes)
	b.nodes = append(b.nodes, node)
}

func (b *builder) addEdge(edge Edge) {
	if b.edgeSeen[edge.ID] {
		return
	}
	b.edgeSeen[edge.ID] = true
	b.edges = append(b.edges, edge)
}

// external records an ext: placeholder node and returns its id.
func (b *builder) external(symbol string) string {
	node := NewExternalNode(symbol)
	b.addNode(node)
	return node.ID
}

// resolveClass resolves a class reference through the lookup, falling back
// to an external placeholder.
func (b *builder) resolveClass(name string) string {
	if id, ok := b.lookups.Classes[name]; ok {
		return id
	}
	return b.external(name)
}

// addModule emits the module node and all structural nodes and edges for one
// parsed module (Pass 1).
func (b *builder) addModule(module *extract.ModuleDef) {
	moduleNode := NewModuleNode(module.Path)
	if module.Docstring != "" {
		moduleNode.Properties = map[string]any{"docstring": module.Docstring}
	}
	b.addNode(moduleNode)

	for i := range module.Classes {
		class := &module.Classes[i]
		classNode := NewClassNode(module.Path, class.Name, class.StartLine, class.EndLine, classProperties(class))
		b.addNode(classNode)
		b.addEdge(NewEdge(moduleNode.ID, classNode.ID, EdgeContains))

		for _, base := range class.Bases {
			b.addEdge(NewEdge(classNode.ID, b.resolveClass(base), EdgeInherits))
		}

		for j := range class.Methods {
			method := &class.Methods[j]
			methodNode := NewFunctionNode(module.Path, method.Name, class.Name,
				method.StartLine, method.EndLine, method.BodyComplexity, functionProperties(method))
			b.addNode(methodNode)
			b.addEdge(NewEdge(classNode.ID, methodNode.ID, EdgeContains))
		}

		for _, refType := range class.ReferencedTypes {
			b.addEdge(NewEdge(classNode.ID, b.resolveClass(refType), EdgeUses))
		}
	}

	for i := range module.Functions {
		fn := &module.Functions[i]
		fnNode := NewFunctionNode(module.Path, fn.Name, "",
			fn.StartLine, fn.EndLine, fn.BodyComplexity, functionProperties(fn))
		b.addNode(fnNode)
		b.addEdge(NewEdge(moduleNode.ID, fnNode.ID, EdgeContains))
	}

	for i := range module.Imports {
		target := b.resolveImportTarget(&module.Imports[i])
		if target == "" {
			continue
		}
		if strings.HasPrefix(target, "ext:") {
			b.external(strings.TrimPrefix(target, "ext:"))
		}
		b.addEdge(NewEdge(moduleNode.ID, target, EdgeImports))
	}
}

// resolveImportTarget classifies an import: targets matching an indexed
// module resolve to that module's id; other internal-looking paths keep a
// module id spelled from the import path; bare single names become external
// placeholders. Fully dynamic imports carry no resolvable target.
func (b *builder) resolveImportTarget(imp *extract.ImportDef) string {
	name := normalizeImportPath(imp.Module)
	if name == "" {
		return ""
	}

	if id, ok := b.lookups.Modules[name]; ok {
		return id
	}
	slashed := strings.ReplaceAll(name, ".", "/")
	if id, ok := b.lookups.Modules[slashed]; ok {
		return id
	}

	if strings.Contains(name, ".") || strings.Contains(name, "/") {
		return ModuleID(slashed)
	}
	return ExternalID(name)
}

// normalizeImportPath strips relative-import markers ("./x", "..pkg.mod")
// from an import path. Returns "" for dynamic imports.
func normalizeImportPath(module string) string {
	if module == "" || module == "<dynamic>" {
		return ""
	}
	module = strings.TrimPrefix(module, "./")
	for strings.HasPrefix(module, "../") {
		module = strings.TrimPrefix(module, "../")
	}
	return strings.TrimLeft(module, ".")
}

// addCalls emits call edges for one module (Pass 2); requires the function
// lookup to be complete.
func (b *builder) addCalls(module *extract.ModuleDef) {
	for i := range module.Classes {
		class := &module.Classes[i]
		for j := range class.Methods {
			method := &class.Methods[j]
			sourceID := MethodID(module.Path, class.Name, method.Name)
			b.callSitesSeen += len(method.CallSites)
			for k := range method.CallSites {
				if targetID, ok := b.resolveCallSite(&method.CallSites[k], module, class.Name); ok {
					b.addEdge(NewEdge(sourceID, targetID, EdgeCalls))
					b.callSitesResolved++
				}
			}
		}
	}

	for i := range module.Functions {
		fn := &module.Functions[i]
		sourceID := FunctionID(module.Path, fn.Name)
		b.callSitesSeen += len(fn.CallSites)
		for k := range fn.CallSites {
			if targetID, ok := b.resolveCallSite(&fn.CallSites[k], module, ""); ok {
				b.addEdge(NewEdge(sourceID, targetID, EdgeCalls))
				b.callSitesResolved++
			}
		}
	}
}

// selfReceivers are the language-specific tokens that denote the enclosing
// instance or class at a call site.
var selfReceivers = map[string]bool{
	"self":  true,
	"cls":   true,
	"this":  true,
	"super": true,
	"base":  true,
	"Self":  true,
}

// resolveCallSite maps a textual call site to a function node id. Unresolved
// call sites are dropped: no edge, no external placeholder.
func (b *builder) resolveCallSite(call *extract.CallSiteDef, module *extract.ModuleDef, enclosingClass string) (string, bool) {
	// 1. Method call on the enclosing instance/class.
	if call.IsMethodCall && selfReceivers[call.Receiver] && enclosingClass != "" {
		methodID := MethodID(module.Path, enclosingClass, call.Callee)
		if _, ok := b.lookups.Functions[methodID]; ok {
			return methodID, true
		}
	}

	// 2. Function in the same module.
	localID := FunctionID(module.Path, call.Callee)
	if _, ok := b.lookups.Functions[localID]; ok {
		return localID, true
	}

	// 3. Simple name in the global lookup.
	if id, ok := b.lookups.Functions[call.Callee]; ok {
		return id, true
	}

	// 4. Imported name: resolve the import's module, then look for the
	// callee inside it.
	for i := range module.Imports {
		imp := &module.Imports[i]
		for _, name := range imp.Names {
			if name != call.Callee {
				continue
			}
			importedPath := normalizeImportPath(imp.Module)
			if moduleID, ok := b.lookups.Modules[importedPath]; ok {
				importedPath = b.lookups.modulePaths[moduleID]
			} else {
				importedPath = strings.ReplaceAll(importedPath, ".", "/")
			}
			importedID := FunctionID(importedPath, call.Callee)
			if _, ok := b.lookups.Functions[importedID]; ok {
				return importedID, true
			}
		}
	}

	return "", false
}

func (b *builder) result() *Result {
	return &Result{
		Nodes:             b.nodes,
		Edges:             b.edges,
		CallSitesSeen:     b.callSitesSeen,
		CallSitesResolved: b.callSitesResolved,
	}
}

// classProperties packs the free-form attributes of a class node.
func classProperties(class *extract.ClassDef) map[string]any {
	props := make(map[string]any)
	if len(class.Bases) > 0 {
		props["bases"] = class.Bases
	}
	if len(class.Attributes) > 0 {
		props["attributes"] = class.Attributes
	}
	if len(class.Decorators) > 0 {
		props["decorators"] = class.Decorators
	}
	if class.Docstring != "" {
		props["docstring"] = class.Docstring
	}
	if len(props) == 0 {
		return nil
	}
	return props
}

// functionProperties packs the free-form attributes of a function node.
func functionProperties(fn *extract.FunctionDef) map[string]any {
	props := make(map[string]any)
	if len(fn.Parameters) > 0 {
		params := make([]string, len(fn.Parameters))
		for i, p := range fn.Parameters {
			params[i] = renderParameter(&p)
		}
		props["parameters"] = params
	}
	if fn.ReturnType != "" {
		props["return_type"] = fn.ReturnType
	}
	if len(fn.Decorators) > 0 {
		props["decorators"] = fn.Decorators
	}
	if fn.IsAsync {
		props["is_async"] = true
	}
	if fn.IsStatic {
		props["is_static"] = true
	}
	if fn.IsClassmethod {
		props["is_classmethod"] = true
	}
	if fn.IsProperty {
		props["is_property"] = true
	}
	if fn.Docstring != "" {
		props["docstring"] = fn.Docstring
	}
	if len(props) == 0 {
		return nil
	}
	return props
}

// renderParameter formats one parameter for the properties blob.
func renderParameter(p *extract.ParameterDef) string {
	var sb strings.Builder
	if p.IsVariadic {
		sb.WriteString("*")
	}
	if p.IsKeyword {
		sb.WriteString("**")
	}
	sb.WriteString(p.Name)
	if p.TypeAnnotation != "" {
		sb.WriteString(": ")
		sb.WriteString(p.TypeAnnotation)
	}
	if p.DefaultValue != "" {
		sb.WriteString(" = ")
		sb.WriteString(p.DefaultValue)
	}
	return sb.String()
}
