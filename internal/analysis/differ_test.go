package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0ximu/mu/internal/extract"
)

func makeParam(name, typeAnn, defaultValue string) extract.ParameterDef {
	return extract.ParameterDef{Name: name, TypeAnnotation: typeAnn, DefaultValue: defaultValue}
}

func makeFunction(name string, params []extract.ParameterDef, returnType string, complexity int) extract.FunctionDef {
	return extract.FunctionDef{
		Name:           name,
		Parameters:     params,
		ReturnType:     returnType,
		BodyComplexity: complexity,
	}
}

func makeModule(path string, functions []extract.FunctionDef, classes []extract.ClassDef) *extract.ModuleDef {
	return &extract.ModuleDef{
		Name:      path,
		Path:      path,
		Language:  "python",
		Functions: functions,
		Classes:   classes,
	}
}

func TestSignature(t *testing.T) {
	fn := makeFunction("greet", []extract.ParameterDef{
		makeParam("name", "str", ""),
		makeParam("loud", "bool", "False"),
	}, "str", 1)

	assert.Equal(t, "greet(name: str, loud: bool = False) -> str", Signature(&fn))

	fn.IsAsync = true
	assert.Equal(t, "async greet(name: str, loud: bool = False) -> str", Signature(&fn))
}

func TestDiffModuleAdded(t *testing.T) {
	head := []*extract.ModuleDef{makeModule("new.py", nil, nil)}

	result := SemanticDiff(nil, head)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, ChangeAdded, result.Changes[0].Type)
	assert.Equal(t, EntityModule, result.Changes[0].Entity)
	assert.False(t, result.IsBreaking())
}

func TestDiffModuleRemovedIsBreaking(t *testing.T) {
	base := []*extract.ModuleDef{makeModule("old.py", nil, nil)}

	result := SemanticDiff(base, nil)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, ChangeRemoved, result.Changes[0].Type)
	assert.True(t, result.IsBreaking())
}

func TestDiffFunctionRemovedIsBreaking(t *testing.T) {
	base := []*extract.ModuleDef{makeModule("m.py", []extract.FunctionDef{
		makeFunction("gone", nil, "", 1),
	}, nil)}
	head := []*extract.ModuleDef{makeModule("m.py", nil, nil)}

	result := SemanticDiff(base, head)
	require.Len(t, result.Changes, 1)
	change := result.Changes[0]
	assert.Equal(t, ChangeRemoved, change.Type)
	assert.Equal(t, EntityFunction, change.Entity)
	assert.True(t, change.Breaking)
	assert.Equal(t, "gone()", change.OldSignature)
}

func TestDiffReturnTypeChangeIsBreaking(t *testing.T) {
	base := []*extract.ModuleDef{makeModule("m.py", []extract.FunctionDef{
		makeFunction("f", nil, "int", 1),
	}, nil)}
	head := []*extract.ModuleDef{makeModule("m.py", []extract.FunctionDef{
		makeFunction("f", nil, "str", 1),
	}, nil)}

	result := SemanticDiff(base, head)
	require.Len(t, result.Changes, 1)
	change := result.Changes[0]
	assert.Equal(t, ChangeModified, change.Type)
	assert.True(t, change.Breaking)
	assert.Contains(t, change.Details, "return: int -> str")
}

func TestDiffComplexityChangeIsModified(t *testing.T) {
	base := []*extract.ModuleDef{makeModule("m.py", []extract.FunctionDef{
		makeFunction("f", nil, "", 2),
	}, nil)}
	head := []*extract.ModuleDef{makeModule("m.py", []extract.FunctionDef{
		makeFunction("f", nil, "", 7),
	}, nil)}

	result := SemanticDiff(base, head)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, ChangeModified, result.Changes[0].Type)
	assert.Contains(t, result.Changes[0].Details, "complexity: 2 -> 7")
	assert.False(t, result.Changes[0].Breaking)
}

// The S6 scenario: a method parameter type change reports both a Modified
// Parameter (breaking) and a Modified Method with old/new signatures.
func TestDiffMethodParameterTypeChange(t *testing.T) {
	baseMethod := makeFunction("foo", []extract.ParameterDef{makeParam("a", "int", "")}, "", 1)
	baseMethod.IsMethod = true
	headMethod := makeFunction("foo", []extract.ParameterDef{makeParam("a", "str", "")}, "", 1)
	headMethod.IsMethod = true

	base := []*extract.ModuleDef{makeModule("m.py", nil, []extract.ClassDef{
		{Name: "M", Methods: []extract.FunctionDef{baseMethod}},
	})}
	head := []*extract.ModuleDef{makeModule("m.py", nil, []extract.ClassDef{
		{Name: "M", Methods: []extract.FunctionDef{headMethod}},
	})}

	result := SemanticDiff(base, head)

	params := result.ByType(EntityParameter)
	require.Len(t, params, 1)
	assert.Equal(t, ChangeModified, params[0].Type)
	assert.Equal(t, "a", params[0].Name)
	assert.True(t, params[0].Breaking)
	assert.Contains(t, params[0].Details, "type: int -> str")

	methods := result.ByType(EntityMethod)
	require.Len(t, methods, 1)
	assert.Equal(t, ChangeModified, methods[0].Type)
	assert.Equal(t, "foo(a: int)", methods[0].OldSignature)
	assert.Equal(t, "foo(a: str)", methods[0].NewSignature)
}

func TestDiffClassInheritanceRemoval(t *testing.T) {
	base := []*extract.ModuleDef{makeModule("m.py", nil, []extract.ClassDef{
		{Name: "C", Bases: []string{"Base"}},
	})}
	head := []*extract.ModuleDef{makeModule("m.py", nil, []extract.ClassDef{
		{Name: "C"},
	})}

	result := SemanticDiff(base, head)
	require.Len(t, result.Changes, 1)
	assert.True(t, result.Changes[0].Breaking)
	assert.Contains(t, result.Changes[0].Details, "-bases: Base")
}

func TestDiffAttributes(t *testing.T) {
	base := []*extract.ModuleDef{makeModule("m.py", nil, []extract.ClassDef{
		{Name: "C", Attributes: []string{"kept", "gone"}},
	})}
	head := []*extract.ModuleDef{makeModule("m.py", nil, []extract.ClassDef{
		{Name: "C", Attributes: []string{"kept", "fresh"}},
	})}

	result := SemanticDiff(base, head)
	attrs := result.ByType(EntityAttribute)
	require.Len(t, attrs, 2)

	byName := map[string]EntityChange{}
	for _, c := range attrs {
		byName[c.Name] = c
	}
	assert.Equal(t, ChangeAdded, byName["fresh"].Type)
	assert.Equal(t, ChangeRemoved, byName["gone"].Type)
	assert.True(t, byName["gone"].Breaking)
}

func TestDiffImports(t *testing.T) {
	base := []*extract.ModuleDef{{
		Path: "m.py", Imports: []extract.ImportDef{{Module: "os"}},
	}}
	head := []*extract.ModuleDef{{
		Path: "m.py", Imports: []extract.ImportDef{{Module: "sys"}},
	}}

	result := SemanticDiff(base, head)
	imports := result.ByType(EntityImport)
	require.Len(t, imports, 2)
}

func TestDiffNoChanges(t *testing.T) {
	modules := func() []*extract.ModuleDef {
		return []*extract.ModuleDef{makeModule("m.py", []extract.FunctionDef{
			makeFunction("f", []extract.ParameterDef{makeParam("x", "int", "")}, "int", 3),
		}, nil)}
	}

	result := SemanticDiff(modules(), modules())
	assert.Empty(t, result.Changes)
	assert.False(t, result.IsBreaking())
}
