package storage

import (
	"errors"
	"os"
	"path/filepath"
)

// Database layout on disk.
const (
	// DirName is the tool directory at the repository root.
	DirName = ".mu"

	// FileName is the database file inside DirName.
	FileName = "mubase"

	// LegacyFileName is the pre-.mu database location.
	LegacyFileName = ".mubase"
)

// ErrNoDatabase is returned when no database is found walking up from the
// start directory.
var ErrNoDatabase = errors.New("mubase: no database found (run a build first)")

// DefaultPath returns the canonical database path under a repository root.
func DefaultPath(root string) string {
	return filepath.Join(root, DirName, FileName)
}

// Find locates the MUbase database for a directory: it checks
// <dir>/.mu/mubase, then the legacy <dir>/.mubase, then walks up parent
// directories until a match or the filesystem root.
func Find(start string) (string, error) {
	current, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	for {
		path := filepath.Join(current, DirName, FileName)
		if fileExists(path) {
			return path, nil
		}

		legacy := filepath.Join(current, LegacyFileName)
		if fileExists(legacy) {
			return legacy, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", ErrNoDatabase
		}
		current = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
