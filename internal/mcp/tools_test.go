package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0ximu/mu/internal/index"
	"github.com/0ximu/mu/internal/storage"
)

// testService indexes a small two-module repository.
func testService(t *testing.T) *index.Service {
	t.Helper()

	root := t.TempDir()
	write := func(rel, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(root, rel), []byte(content), 0o644))
	}
	write("auth.py", `
import db

class AuthService:
    def login(self, user: str) -> bool:
        return check(user)

def check(user):
    return True
`)
	write("db.py", `
def connect():
    pass
`)

	require.NoError(t, os.MkdirAll(filepath.Join(root, storage.DirName), 0o755))
	store, err := storage.Open(storage.DefaultPath(root))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	service, err := index.NewService(root, store, zap.NewNop())
	require.NoError(t, err)
	_, err = service.Build(context.Background())
	require.NoError(t, err)
	return service
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// textOf unwraps the text payload of a tool result.
func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok, "expected text content")
	return text.Text
}

// The registered tools are the documented contract.
func TestToolContract(t *testing.T) {
	assert.Equal(t,
		[]string{"mu_query", "mu_deps", "mu_impact", "mu_cycles", "mu_stats"},
		ToolNames)
}

func TestServerRegistersDocumentedTools(t *testing.T) {
	service := testService(t)
	server := NewServer(service, nil)

	response := server.mcp.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	require.NotNil(t, response)

	raw, err := json.Marshal(response)
	require.NoError(t, err)
	for _, name := range ToolNames {
		assert.Contains(t, string(raw), `"`+name+`"`)
	}
}

func TestQueryTool(t *testing.T) {
	handler := queryHandler(testService(t))

	result, err := handler(context.Background(), callRequest(map[string]any{
		"query": "cls n%Auth",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, textOf(t, result), "AuthService")
}

func TestQueryToolMissingParameter(t *testing.T) {
	handler := queryHandler(testService(t))

	result, err := handler(context.Background(), callRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestDepsTool(t *testing.T) {
	handler := depsHandler(testService(t))

	result, err := handler(context.Background(), callRequest(map[string]any{
		"target": "mod:auth.py",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := textOf(t, result)
	assert.Contains(t, text, `"operation": "dependencies"`)
	assert.Contains(t, text, "mod:db.py")
}

func TestDepsToolReverse(t *testing.T) {
	handler := depsHandler(testService(t))

	result, err := handler(context.Background(), callRequest(map[string]any{
		"target":  "mod:db.py",
		"reverse": true,
	}))
	require.NoError(t, err)

	text := textOf(t, result)
	assert.Contains(t, text, `"operation": "dependents"`)
	assert.Contains(t, text, "mod:auth.py")
}

func TestImpactTool(t *testing.T) {
	handler := impactHandler(testService(t))

	result, err := handler(context.Background(), callRequest(map[string]any{
		"target": "mod:auth.py",
	}))
	require.NoError(t, err)

	text := textOf(t, result)
	assert.Contains(t, text, `"direction": "impact"`)
	assert.Contains(t, text, "mod:db.py")
}

func TestImpactToolAncestors(t *testing.T) {
	handler := impactHandler(testService(t))

	result, err := handler(context.Background(), callRequest(map[string]any{
		"target":    "fn:auth.py:check",
		"direction": "ancestors",
	}))
	require.NoError(t, err)

	text := textOf(t, result)
	assert.Contains(t, text, "fn:auth.py:AuthService.login")
}

func TestImpactToolWithRisk(t *testing.T) {
	handler := impactHandler(testService(t))

	result, err := handler(context.Background(), callRequest(map[string]any{
		"target": "fn:auth.py:check",
		"risk":   true,
	}))
	require.NoError(t, err)

	text := textOf(t, result)
	assert.Contains(t, text, `"risk_score"`)
	assert.Contains(t, text, `"risk_level"`)
}

func TestImpactToolBadDirection(t *testing.T) {
	handler := impactHandler(testService(t))

	result, err := handler(context.Background(), callRequest(map[string]any{
		"target":    "mod:auth.py",
		"direction": "sideways",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestCyclesTool(t *testing.T) {
	handler := cyclesHandler(testService(t))

	result, err := handler(context.Background(), callRequest(map[string]any{
		"edge_kind": "imports",
	}))
	require.NoError(t, err)

	text := textOf(t, result)
	assert.Contains(t, text, `"count": 0`)
}

func TestStatsTool(t *testing.T) {
	handler := statsHandler(testService(t))

	result, err := handler(context.Background(), callRequest(map[string]any{
		"patterns": true,
	}))
	require.NoError(t, err)

	text := textOf(t, result)
	assert.Contains(t, text, `"node_count"`)
	assert.Contains(t, text, `"patterns"`)
}
