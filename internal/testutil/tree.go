// Package testutil provides reusable helpers for building scratch file trees
// in tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TestTree represents a temporary directory tree for testing.
type TestTree struct {
	Path string
	t    *testing.T

	files map[string][]byte
	dirs  []string
}

// NewTestTree creates a new tree builder. Call Build() to materialize it.
func NewTestTree(t *testing.T) *TestTree {
	t.Helper()
	return &TestTree{
		t:     t,
		files: make(map[string][]byte),
	}
}

// WithFile adds a text file to the tree. The path is relative to the root.
func (tr *TestTree) WithFile(path, content string) *TestTree {
	tr.files[path] = []byte(content)
	return tr
}

// WithBinaryFile adds a file with raw bytes to the tree.
func (tr *TestTree) WithBinaryFile(path string, content []byte) *TestTree {
	tr.files[path] = content
	return tr
}

// WithDir adds an (empty) directory to the tree.
func (tr *TestTree) WithDir(path string) *TestTree {
	tr.dirs = append(tr.dirs, path)
	return tr
}

// Build creates the tree under a temp directory.
func (tr *TestTree) Build() *TestTree {
	tr.t.Helper()
	tr.Path = tr.t.TempDir()

	for _, dir := range tr.dirs {
		if err := os.MkdirAll(filepath.Join(tr.Path, dir), 0755); err != nil {
			tr.t.Fatalf("failed to create directory %s: %v", dir, err)
		}
	}
	for path, content := range tr.files {
		full := filepath.Join(tr.Path, path)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			tr.t.Fatalf("failed to create directory for %s: %v", path, err)
		}
		if err := os.WriteFile(full, content, 0644); err != nil {
			tr.t.Fatalf("failed to write %s: %v", path, err)
		}
	}
	return tr
}

// Abs returns the absolute path of a file in the tree.
func (tr *TestTree) Abs(relPath string) string {
	return filepath.Join(tr.Path, relPath)
}

// Chdir switches the working directory to the tree root for the duration of
// the test.
func (tr *TestTree) Chdir() *TestTree {
	tr.t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		tr.t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tr.Path); err != nil {
		tr.t.Fatalf("failed to chdir to %s: %v", tr.Path, err)
	}
	tr.t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			tr.t.Errorf("failed to restore working directory: %v", err)
		}
	})
	return tr
}
