package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteTree creates files under a fresh temporary directory and returns
// the directory. Keys are slash-separated relative paths.
func WriteTree(t testing.TB, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		WriteFile(t, root, rel, content)
	}
	return root
}

// WriteFile writes one file below root, creating parent directories.
func WriteFile(t testing.TB, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(p), err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}
