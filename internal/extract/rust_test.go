package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseRs(t *testing.T, source string) *ModuleDef {
	t.Helper()
	result := ParseSource([]byte(source), "lib.rs", "rust")
	require.True(t, result.Success, result.Err)
	return result.Module
}

func TestRustFunction(t *testing.T) {
	module := parseRs(t, `
pub fn hello(name: &str) -> String {
    format!("Hello, {}!", name)
}
`)

	require.Len(t, module.Functions, 1)
	fn := module.Functions[0]
	assert.Equal(t, "hello", fn.Name)
	assert.Equal(t, "String", fn.ReturnType)
	assert.Contains(t, fn.Decorators, "pub")
	require.Len(t, fn.Parameters, 1)
	assert.Equal(t, "name", fn.Parameters[0].Name)
}

func TestRustStructProjectsToClass(t *testing.T) {
	module := parseRs(t, `
pub struct User {
    name: String,
    age: u32,
}
`)

	require.Len(t, module.Classes, 1)
	class := module.Classes[0]
	assert.Equal(t, "User", class.Name)
	assert.Contains(t, class.Decorators, "struct")
	assert.Equal(t, []string{"name", "age"}, class.Attributes)
}

func TestRustEnumVariants(t *testing.T) {
	module := parseRs(t, `
enum Shape {
    Circle,
    Square,
    Triangle,
}
`)

	require.Len(t, module.Classes, 1)
	class := module.Classes[0]
	assert.Contains(t, class.Decorators, "enum")
	assert.Equal(t, []string{"Circle", "Square", "Triangle"}, class.Attributes)
}

func TestRustTraitWithSupertrait(t *testing.T) {
	module := parseRs(t, `
pub trait Drawable: Visible {
    fn draw(&self);
    fn area(&self) -> f64 {
        0.0
    }
}
`)

	require.Len(t, module.Classes, 1)
	class := module.Classes[0]
	assert.Contains(t, class.Decorators, "trait")
	assert.Equal(t, []string{"Visible"}, class.Bases)
	require.Len(t, class.Methods, 2)
	assert.Equal(t, "draw", class.Methods[0].Name)
}

func TestRustImplMethodsAttach(t *testing.T) {
	module := parseRs(t, `
struct Counter {
    value: i64,
}

impl Counter {
    fn new() -> Self {
        Counter { value: 0 }
    }

    fn increment(&mut self) {
        self.value += 1;
    }
}
`)

	require.Len(t, module.Classes, 1)
	class := module.Classes[0]
	require.Len(t, class.Methods, 2)

	// `new` has no self receiver: an associated (static) method.
	assert.Equal(t, "new", class.Methods[0].Name)
	assert.True(t, class.Methods[0].IsStatic)
	assert.Equal(t, "increment", class.Methods[1].Name)
	assert.False(t, class.Methods[1].IsStatic)
}

func TestRustImplOnForeignTypeCreatesSyntheticClass(t *testing.T) {
	module := parseRs(t, `
impl Display for RemoteThing {
    fn fmt(&self, f: &mut Formatter) -> Result {
        write!(f, "thing")
    }
}
`)

	require.Len(t, module.Classes, 1)
	class := module.Classes[0]
	assert.Equal(t, "RemoteThing", class.Name)
	assert.Contains(t, class.Decorators, "impl")
	require.Len(t, class.Methods, 1)
	assert.Equal(t, "fmt", class.Methods[0].Name)
	assert.Contains(t, class.Methods[0].Decorators, "impl:Display")
}

func TestRustUseDeclarations(t *testing.T) {
	module := parseRs(t, `
use std::collections::HashMap;
use serde::{Serialize, Deserialize};
use anyhow::Result as AnyResult;
mod helpers;
`)

	require.Len(t, module.Imports, 4)
	assert.Equal(t, "std.collections.HashMap", module.Imports[0].Module)
	assert.Equal(t, "serde", module.Imports[1].Module)
	assert.ElementsMatch(t, []string{"Serialize", "Deserialize"}, module.Imports[1].Names)
	assert.Equal(t, "AnyResult", module.Imports[2].Alias)
	assert.Equal(t, "helpers", module.Imports[3].Module)
}

func TestRustCallSites(t *testing.T) {
	module := parseRs(t, `
fn process() {
    let data = load();
    helpers::transform(&data);
    data.save();
}
`)

	fn := module.Functions[0]
	require.Len(t, fn.CallSites, 3)
	assert.Equal(t, CallSiteDef{Callee: "load"}, fn.CallSites[0])
	assert.Equal(t, CallSiteDef{Callee: "transform", Receiver: "helpers", IsMethodCall: true}, fn.CallSites[1])
	assert.Equal(t, CallSiteDef{Callee: "save", Receiver: "data", IsMethodCall: true}, fn.CallSites[2])
}

func TestRustComplexity(t *testing.T) {
	module := parseRs(t, `
fn classify(x: i32) -> &'static str {
    if x > 0 && x < 10 {
        return "small";
    }
    for _ in 0..x {
        while x > 100 {
            break;
        }
    }
    match x {
        0 => "zero",
        1 => "one",
        _ => "many",
    }
}
`)

	fn := module.Functions[0]
	// 1 + if + && + for + while + 3 match arms = 8
	assert.Equal(t, 8, fn.BodyComplexity)
}

func TestRustAsyncFunction(t *testing.T) {
	module := parseRs(t, `
pub async fn fetch(url: &str) -> Result<String, Error> {
    Ok(String::new())
}
`)

	fn := module.Functions[0]
	assert.True(t, fn.IsAsync)
	assert.Contains(t, fn.ReturnType, "Result")
}
