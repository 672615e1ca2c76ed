package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, Default().Scan.Ignore, cfg.Scan.Ignore)
	assert.Equal(t, 500, cfg.Watch.DebounceMs)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	root := t.TempDir()

	cfg := Default()
	cfg.Scan.Extensions = []string{"py", "rs"}
	cfg.Scan.MaxFileSize = 1024
	cfg.Log.Level = "debug"
	require.NoError(t, Save(root, cfg))

	loaded, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"py", "rs"}, loaded.Scan.Extensions)
	assert.Equal(t, int64(1024), loaded.Scan.MaxFileSize)
	assert.Equal(t, "debug", loaded.Log.Level)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".mu"), 0o755))
	require.NoError(t, os.WriteFile(Path(root), []byte("log:\n  level: warn\n"), 0o644))

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, Default().Scan.Ignore, cfg.Scan.Ignore)
}

func TestLoadInvalidYAML(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".mu"), 0o755))
	require.NoError(t, os.WriteFile(Path(root), []byte("scan: ["), 0o644))

	_, err := Load(root)
	assert.Error(t, err)
}
