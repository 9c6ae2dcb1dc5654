// Package testutil builds on-disk source fixtures for tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating parent of %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// CreateFileTree writes sources under root, keyed by slash-separated
// relative path, and returns the written paths sorted by name.
func CreateFileTree(t *testing.T, root string, sources map[string]string) []string {
	t.Helper()
	paths := make([]string, 0, len(sources))
	for _, name := range Names(sources) {
		path := filepath.Join(root, filepath.FromSlash(name))
		WriteFile(t, path, sources[name])
		paths = append(paths, path)
	}
	return paths
}
