package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/0ximu/mu/internal/extract"
)

// ChangeType classifies a semantic change.
type ChangeType string

const (
	ChangeAdded    ChangeType = "Added"
	ChangeRemoved  ChangeType = "Removed"
	ChangeModified ChangeType = "Modified"
)

// EntityType is the granularity of a change.
type EntityType string

const (
	EntityModule    EntityType = "Module"
	EntityClass     EntityType = "Class"
	EntityFunction  EntityType = "Function"
	EntityMethod    EntityType = "Method"
	EntityParameter EntityType = "Parameter"
	EntityAttribute EntityType = "Attribute"
	EntityImport    EntityType = "Import"
)

// EntityChange is one semantic change between two versions of a codebase.
type EntityChange struct {
	Type         ChangeType `json:"change_type"`
	Entity       EntityType `json:"entity_type"`
	Name         string     `json:"name"`
	FilePath     string     `json:"file_path"`
	ParentName   string     `json:"parent_name,omitempty"`
	OldSignature string     `json:"old_signature,omitempty"`
	NewSignature string     `json:"new_signature,omitempty"`
	Details      string     `json:"details,omitempty"`
	Breaking     bool       `json:"breaking"`
}

// DiffResult is the ordered list of changes between two module collections.
type DiffResult struct {
	Changes []EntityChange `json:"changes"`
}

// IsBreaking reports whether any change is breaking.
func (r *DiffResult) IsBreaking() bool {
	for i := range r.Changes {
		if r.Changes[i].Breaking {
			return true
		}
	}
	return false
}

// ByType filters the changes to one entity granularity.
func (r *DiffResult) ByType(entity EntityType) []EntityChange {
	var out []EntityChange
	for _, c := range r.Changes {
		if c.Entity == entity {
			out = append(out, c)
		}
	}
	return out
}

// Signature renders a function signature string for diff output.
func Signature(fn *extract.FunctionDef) string {
	params := make([]string, len(fn.Parameters))
	for i, p := range fn.Parameters {
		s := p.Name
		if p.TypeAnnotation != "" {
			s += ": " + p.TypeAnnotation
		}
		if p.DefaultValue != "" {
			s += " = " + p.DefaultValue
		}
		params[i] = s
	}

	prefix := ""
	if fn.IsAsync {
		prefix = "async "
	}
	ret := ""
	if fn.ReturnType != "" {
		ret = " -> " + fn.ReturnType
	}

	return fmt.Sprintf("%s%s(%s)%s", prefix, fn.Name, strings.Join(params, ", "), ret)
}

// SemanticDiff compares two module collections by name within parent scopes
// (no structural matching). Removals and incompatible signature changes are
// breaking; a function is Modified whenever its signature, async-ness,
// static-ness or complexity changed.
func SemanticDiff(base, head []*extract.ModuleDef) *DiffResult {
	result := &DiffResult{}

	baseByPath := make(map[string]*extract.ModuleDef, len(base))
	for _, m := range base {
		baseByPath[m.Path] = m
	}
	headByPath := make(map[string]*extract.ModuleDef, len(head))
	for _, m := range head {
		headByPath[m.Path] = m
	}

	for _, path := range sortedKeys(headByPath) {
		if _, ok := baseByPath[path]; !ok {
			result.Changes = append(result.Changes, EntityChange{
				Type: ChangeAdded, Entity: EntityModule,
				Name: headByPath[path].Name, FilePath: path,
			})
		}
	}
	for _, path := range sortedKeys(baseByPath) {
		if _, ok := headByPath[path]; !ok {
			result.Changes = append(result.Changes, EntityChange{
				Type: ChangeRemoved, Entity: EntityModule,
				Name: baseByPath[path].Name, FilePath: path,
				Breaking: true,
			})
		}
	}
	for _, path := range sortedKeys(baseByPath) {
		if headModule, ok := headByPath[path]; ok {
			result.Changes = append(result.Changes, diffModule(baseByPath[path], headModule)...)
		}
	}

	return result
}

func diffModule(base, head *extract.ModuleDef) []EntityChange {
	var changes []EntityChange
	path := head.Path

	baseFuncs := functionsByName(base.Functions)
	headFuncs := functionsByName(head.Functions)

	for _, name := range addedNames(baseFuncs, headFuncs) {
		changes = append(changes, EntityChange{
			Type: ChangeAdded, Entity: EntityFunction, Name: name, FilePath: path,
			NewSignature: Signature(headFuncs[name]),
		})
	}
	for _, name := range addedNames(headFuncs, baseFuncs) {
		changes = append(changes, EntityChange{
			Type: ChangeRemoved, Entity: EntityFunction, Name: name, FilePath: path,
			OldSignature: Signature(baseFuncs[name]),
			Breaking:     true,
		})
	}
	for _, name := range commonNames(baseFuncs, headFuncs) {
		changes = append(changes, diffFunction(baseFuncs[name], headFuncs[name], path, "")...)
	}

	baseClasses := classesByName(base.Classes)
	headClasses := classesByName(head.Classes)

	for _, name := range addedNames(baseClasses, headClasses) {
		change := EntityChange{Type: ChangeAdded, Entity: EntityClass, Name: name, FilePath: path}
		if bases := headClasses[name].Bases; len(bases) > 0 {
			change.Details = "bases: " + strings.Join(bases, ", ")
		}
		changes = append(changes, change)
	}
	for _, name := range addedNames(headClasses, baseClasses) {
		changes = append(changes, EntityChange{
			Type: ChangeRemoved, Entity: EntityClass, Name: name, FilePath: path,
			Breaking: true,
		})
	}
	for _, name := range commonNames(baseClasses, headClasses) {
		changes = append(changes, diffClass(baseClasses[name], headClasses[name], path)...)
	}

	baseImports := importSet(base.Imports)
	headImports := importSet(head.Imports)

	for _, module := range setDifference(headImports, baseImports) {
		changes = append(changes, EntityChange{
			Type: ChangeAdded, Entity: EntityImport, Name: module, FilePath: path,
		})
	}
	for _, module := range setDifference(baseImports, headImports) {
		changes = append(changes, EntityChange{
			Type: ChangeRemoved, Entity: EntityImport, Name: module, FilePath: path,
		})
	}

	return changes
}

func diffClass(base, head *extract.ClassDef, path string) []EntityChange {
	var changes []EntityChange
	className := head.Name

	baseBases := stringSet(base.Bases)
	headBases := stringSet(head.Bases)
	if !equalSets(baseBases, headBases) {
		change := EntityChange{
			Type: ChangeModified, Entity: EntityClass, Name: className, FilePath: path,
		}
		var parts []string
		if added := setDifference(headBases, baseBases); len(added) > 0 {
			parts = append(parts, "+bases: "+strings.Join(added, ", "))
		}
		if removed := setDifference(baseBases, headBases); len(removed) > 0 {
			parts = append(parts, "-bases: "+strings.Join(removed, ", "))
			// Removing inheritance is breaking.
			change.Breaking = true
		}
		change.Details = strings.Join(parts, "; ")
		changes = append(changes, change)
	}

	baseMethods := functionsByName(base.Methods)
	headMethods := functionsByName(head.Methods)

	for _, name := range addedNames(baseMethods, headMethods) {
		changes = append(changes, EntityChange{
			Type: ChangeAdded, Entity: EntityMethod, Name: name, FilePath: path,
			ParentName:   className,
			NewSignature: Signature(headMethods[name]),
		})
	}
	for _, name := range addedNames(headMethods, baseMethods) {
		changes = append(changes, EntityChange{
			Type: ChangeRemoved, Entity: EntityMethod, Name: name, FilePath: path,
			ParentName:   className,
			OldSignature: Signature(baseMethods[name]),
			Breaking:     true,
		})
	}
	for _, name := range commonNames(baseMethods, headMethods) {
		changes = append(changes, diffFunction(baseMethods[name], headMethods[name], path, className)...)
	}

	baseAttrs := stringSet(base.Attributes)
	headAttrs := stringSet(head.Attributes)
	for _, name := range setDifference(headAttrs, baseAttrs) {
		changes = append(changes, EntityChange{
			Type: ChangeAdded, Entity: EntityAttribute, Name: name, FilePath: path,
			ParentName: className,
		})
	}
	for _, name := range setDifference(baseAttrs, headAttrs) {
		changes = append(changes, EntityChange{
			Type: ChangeRemoved, Entity: EntityAttribute, Name: name, FilePath: path,
			ParentName: className,
			Breaking:   true,
		})
	}

	return changes
}

func diffFunction(base, head *extract.FunctionDef, path, className string) []EntityChange {
	var changes []EntityChange

	entity := EntityFunction
	parent := ""
	if className != "" {
		entity = EntityMethod
		parent = className
	}

	returnChanged := base.ReturnType != head.ReturnType
	asyncChanged := base.IsAsync != head.IsAsync
	staticChanged := base.IsStatic != head.IsStatic
	complexityChanged := base.BodyComplexity != head.BodyComplexity

	paramChanges := diffParameters(base.Parameters, head.Parameters, head.Name, path, className)

	signatureChanged := returnChanged || asyncChanged || staticChanged || len(paramChanges) > 0

	if signatureChanged || complexityChanged {
		var parts []string
		if returnChanged {
			parts = append(parts, fmt.Sprintf("return: %s -> %s", orNone(base.ReturnType), orNone(head.ReturnType)))
		}
		if asyncChanged {
			parts = append(parts, fmt.Sprintf("async: %t -> %t", base.IsAsync, head.IsAsync))
		}
		if staticChanged {
			parts = append(parts, fmt.Sprintf("static: %t -> %t", base.IsStatic, head.IsStatic))
		}
		if complexityChanged {
			parts = append(parts, fmt.Sprintf("complexity: %d -> %d", base.BodyComplexity, head.BodyComplexity))
		}
		if len(paramChanges) > 0 {
			parts = append(parts, fmt.Sprintf("%d param changes", len(paramChanges)))
		}

		changes = append(changes, EntityChange{
			Type: ChangeModified, Entity: entity, Name: head.Name, FilePath: path,
			ParentName:   parent,
			OldSignature: Signature(base),
			NewSignature: Signature(head),
			Details:      strings.Join(parts, ", "),
			// Return type changes are breaking.
			Breaking: returnChanged,
		})
	}

	changes = append(changes, paramChanges...)
	return changes
}

func diffParameters(base, head []extract.ParameterDef, funcName, path, className string) []EntityChange {
	var changes []EntityChange

	parent := funcName
	if className != "" {
		parent = className + "." + funcName
	}

	baseByName := make(map[string]*extract.ParameterDef, len(base))
	for i := range base {
		baseByName[base[i].Name] = &base[i]
	}
	headByName := make(map[string]*extract.ParameterDef, len(head))
	for i := range head {
		headByName[head[i].Name] = &head[i]
	}

	for _, name := range addedNames(baseByName, headByName) {
		param := headByName[name]
		change := EntityChange{
			Type: ChangeAdded, Entity: EntityParameter, Name: name, FilePath: path,
			ParentName: parent,
		}
		var details []string
		if param.TypeAnnotation != "" {
			details = append(details, "type: "+param.TypeAnnotation)
		}
		if param.DefaultValue != "" {
			details = append(details, "default: "+param.DefaultValue)
		}
		change.Details = strings.Join(details, ", ")
		changes = append(changes, change)
	}

	for _, name := range addedNames(headByName, baseByName) {
		changes = append(changes, EntityChange{
			Type: ChangeRemoved, Entity: EntityParameter, Name: name, FilePath: path,
			ParentName: parent,
			Breaking:   true,
		})
	}

	for _, name := range commonNames(baseByName, headByName) {
		baseParam := baseByName[name]
		headParam := headByName[name]

		typeChanged := baseParam.TypeAnnotation != headParam.TypeAnnotation
		defaultChanged := baseParam.DefaultValue != headParam.DefaultValue
		if !typeChanged && !defaultChanged {
			continue
		}

		change := EntityChange{
			Type: ChangeModified, Entity: EntityParameter, Name: name, FilePath: path,
			ParentName: parent,
			// Type changes are potentially breaking.
			Breaking: typeChanged,
		}
		var parts []string
		if typeChanged {
			parts = append(parts, fmt.Sprintf("type: %s -> %s", orNone(baseParam.TypeAnnotation), orNone(headParam.TypeAnnotation)))
		}
		if defaultChanged {
			parts = append(parts, fmt.Sprintf("default: %s -> %s", orNone(baseParam.DefaultValue), orNone(headParam.DefaultValue)))
		}
		change.Details = strings.Join(parts, ", ")
		changes = append(changes, change)
	}

	return changes
}

// Helpers for name-keyed comparison with deterministic ordering.

func functionsByName(fns []extract.FunctionDef) map[string]*extract.FunctionDef {
	m := make(map[string]*extract.FunctionDef, len(fns))
	for i := range fns {
		m[fns[i].Name] = &fns[i]
	}
	return m
}

func classesByName(classes []extract.ClassDef) map[string]*extract.ClassDef {
	m := make(map[string]*extract.ClassDef, len(classes))
	for i := range classes {
		m[classes[i].Name] = &classes[i]
	}
	return m
}

func importSet(imports []extract.ImportDef) map[string]bool {
	set := make(map[string]bool, len(imports))
	for i := range imports {
		if imports[i].Module != "" {
			set[imports[i].Module] = true
		}
	}
	return set
}

func stringSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func equalSets(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func setDifference(a, b map[string]bool) []string {
	var out []string
	for k := range a {
		if !b[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// addedNames returns keys in head missing from base, sorted.
func addedNames[V any](base, head map[string]V) []string {
	var out []string
	for k := range head {
		if _, ok := base[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// commonNames returns keys present in both maps, sorted.
func commonNames[V any](base, head map[string]V) []string {
	var out []string
	for k := range base {
		if _, ok := head[k]; ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
