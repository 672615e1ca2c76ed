package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseTS(t *testing.T, source string) *ModuleDef {
	t.Helper()
	result := ParseSource([]byte(source), "test.ts", "typescript")
	require.True(t, result.Success, result.Err)
	return result.Module
}

func TestTypeScriptFunction(t *testing.T) {
	module := parseTS(t, `
function hello(name: string): string {
    return "Hello, " + name;
}
`)

	require.Len(t, module.Functions, 1)
	fn := module.Functions[0]
	assert.Equal(t, "hello", fn.Name)
	assert.Equal(t, "string", fn.ReturnType)
	require.Len(t, fn.Parameters, 1)
	assert.Equal(t, "name", fn.Parameters[0].Name)
	assert.Equal(t, "string", fn.Parameters[0].TypeAnnotation)
}

func TestTypeScriptClass(t *testing.T) {
	module := parseTS(t, `
class OrderService extends BaseService implements Billable {
    total: number;

    async charge(amount: number): Promise<Receipt> {
        return this.gateway.submit(amount);
    }

    static create(): OrderService {
        return new OrderService();
    }
}
`)

	require.Len(t, module.Classes, 1)
	class := module.Classes[0]
	assert.Equal(t, "OrderService", class.Name)
	assert.ElementsMatch(t, []string{"BaseService", "Billable"}, class.Bases)
	assert.Equal(t, []string{"total"}, class.Attributes)

	require.Len(t, class.Methods, 2)
	charge := class.Methods[0]
	assert.True(t, charge.IsAsync)
	assert.True(t, charge.IsMethod)
	assert.Equal(t, "Promise<Receipt>", charge.ReturnType)

	create := class.Methods[1]
	assert.True(t, create.IsStatic)

	// Referenced types strip generics and primitives.
	assert.Contains(t, class.ReferencedTypes, "Receipt")
	assert.Contains(t, class.ReferencedTypes, "Promise")
	assert.NotContains(t, class.ReferencedTypes, "number")
	assert.NotContains(t, class.ReferencedTypes, "OrderService")
}

func TestTypeScriptInterface(t *testing.T) {
	module := parseTS(t, `
interface Billable extends Charged {
    balance: number;
    charge(amount: number): Receipt;
}
`)

	require.Len(t, module.Classes, 1)
	iface := module.Classes[0]
	assert.Equal(t, "Billable", iface.Name)
	assert.Contains(t, iface.Decorators, "interface")
	assert.Equal(t, []string{"Charged"}, iface.Bases)
	assert.Equal(t, []string{"balance"}, iface.Attributes)
	require.Len(t, iface.Methods, 1)
	assert.Equal(t, "charge", iface.Methods[0].Name)
}

func TestTypeScriptImports(t *testing.T) {
	module := parseTS(t, `
import { foo, bar } from './module';
import Default from './other';
import * as utils from './utils';
`)

	require.Len(t, module.Imports, 3)
	assert.Equal(t, "./module", module.Imports[0].Module)
	assert.Equal(t, []string{"foo", "bar"}, module.Imports[0].Names)
	assert.Equal(t, []string{"Default"}, module.Imports[1].Names)
	assert.Equal(t, "utils", module.Imports[2].Alias)
}

func TestTypeScriptExportedDeclarations(t *testing.T) {
	module := parseTS(t, `
export function visible() {}
export class Exposed {}
export const arrow = (x: number) => x * 2;
`)

	require.Len(t, module.Functions, 2)
	assert.Equal(t, "visible", module.Functions[0].Name)
	assert.Equal(t, "arrow", module.Functions[1].Name)
	require.Len(t, module.Classes, 1)
	assert.Equal(t, "Exposed", module.Classes[0].Name)
}

func TestTypeScriptArrowFunctions(t *testing.T) {
	module := parseTS(t, `
const handler = async (req: Request) => {
    if (req.ok) {
        process(req);
    }
};
`)

	require.Len(t, module.Functions, 1)
	fn := module.Functions[0]
	assert.Equal(t, "handler", fn.Name)
	assert.True(t, fn.IsAsync)
	assert.Equal(t, 2, fn.BodyComplexity)
}

func TestTypeScriptCallSites(t *testing.T) {
	module := parseTS(t, `
function run() {
    setup();
    this.tick();
    logger.warn("x");
}
`)

	fn := module.Functions[0]
	require.Len(t, fn.CallSites, 3)
	assert.Equal(t, CallSiteDef{Callee: "setup"}, fn.CallSites[0])
	assert.Equal(t, CallSiteDef{Callee: "tick", Receiver: "this", IsMethodCall: true}, fn.CallSites[1])
	assert.Equal(t, CallSiteDef{Callee: "warn", Receiver: "logger", IsMethodCall: true}, fn.CallSites[2])
}

func TestTypeScriptDynamicImports(t *testing.T) {
	module := parseTS(t, "const mod = import(`./handlers/${kind}.js`);\nconst fixed = require('./static');\nconst loose = require(modulePath);\n")

	var dynamic []ImportDef
	var static []ImportDef
	for _, imp := range module.Imports {
		if imp.IsDynamic {
			dynamic = append(dynamic, imp)
		} else {
			static = append(static, imp)
		}
	}

	require.Len(t, dynamic, 2)
	assert.Equal(t, "<dynamic>", dynamic[0].Module)
	assert.Equal(t, "import()", dynamic[0].DynamicSource)
	assert.NotEmpty(t, dynamic[0].DynamicPattern)
	assert.Equal(t, "require()", dynamic[1].DynamicSource)

	// Static require keeps its literal path as a plain import.
	require.Len(t, static, 1)
	assert.Equal(t, "./static", static[0].Module)
}

func TestTypeScriptComplexity(t *testing.T) {
	module := parseTS(t, `
function decide(x: number): string {
    if (x > 10 && x < 100) {
        return "mid";
    }
    for (let i = 0; i < x; i++) {
        while (flaky()) {
            retry();
        }
    }
    switch (x) {
    case 0:
        return "zero";
    case 1:
        return "one";
    }
    return x > 0 ? "pos" : "neg";
}
`)

	fn := module.Functions[0]
	// 1 + if + && + for + while + 2 case + ternary = 8
	assert.Equal(t, 8, fn.BodyComplexity)
}
