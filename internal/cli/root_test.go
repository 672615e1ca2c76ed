package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandWiring(t *testing.T) {
	root := NewRootCommand()

	expected := []string{
		"build", "query", "deps", "cycles", "impact", "ancestors",
		"path", "patterns", "diff", "stats", "watch", "mcp", "version",
	}
	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, name := range expected {
		assert.True(t, names[name], "missing command %s", name)
	}
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
}

func TestQueryRequiresDatabase(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"--root", t.TempDir(), "query", "fn"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database")
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "NULL", formatValue(nil))
	assert.Equal(t, "42", formatValue(int64(42)))
	assert.Equal(t, "3.5", formatValue(3.5))
	assert.Equal(t, "text", formatValue("text"))
	assert.Equal(t, "<blob:3 bytes>", formatValue([]byte{1, 2, 3}))
}

func TestConfidenceBar(t *testing.T) {
	assert.Equal(t, "█████", confidenceBar(1.0))
	assert.Equal(t, "░░░░░", confidenceBar(0.0))
	assert.Contains(t, confidenceBar(0.5), "█")
	assert.Contains(t, confidenceBar(0.5), "░")
}
