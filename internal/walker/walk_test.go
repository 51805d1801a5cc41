package walker

import (
	"context"
	"sort"
	"testing"

	"github.com/rusty-ferris-club/recon/internal/testutil"
)

func collect(t *testing.T, root string, opts Options) []string {
	t.Helper()
	var paths []string
	err := Walk(context.Background(), root, opts, func(e Entry) error {
		if e.Err != nil {
			t.Logf("walk warning: %s: %v", e.Path, e.Err)
			return nil
		}
		if !e.Info.IsDir() {
			paths = append(paths, e.Path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	sort.Strings(paths)
	return paths
}

func TestWalkYieldsEachFileOnce(t *testing.T) {
	tree := testutil.NewTestTree(t).
		WithFile("a.txt", "hi\n").
		WithFile("sub/b.txt", "b\n").
		WithFile("sub/deep/c.txt", "c\n").
		WithDir("empty").
		Build()

	paths := collect(t, tree.Path, Options{})
	if len(paths) != 3 {
		t.Fatalf("expected 3 files, got %v", paths)
	}
	seen := map[string]int{}
	for _, p := range paths {
		seen[p]++
	}
	for p, n := range seen {
		if n != 1 {
			t.Errorf("entry %s reported %d times", p, n)
		}
	}
}

func TestWalkHonorsGitignore(t *testing.T) {
	tree := testutil.NewTestTree(t).
		WithFile(".gitignore", "*.log\nbuild/\n").
		WithFile("keep.txt", "k\n").
		WithFile("debug.log", "nope\n").
		WithFile("build/out.bin", "nope\n").
		Build()

	paths := collect(t, tree.Path, Options{})
	for _, p := range paths {
		if p == tree.Abs("debug.log") || p == tree.Abs("build/out.bin") {
			t.Errorf("ignored entry was walked: %s", p)
		}
	}
	// .gitignore itself and keep.txt remain.
	if len(paths) != 2 {
		t.Errorf("expected 2 files, got %v", paths)
	}

	all := collect(t, tree.Path, Options{All: true})
	if len(all) != 4 {
		t.Errorf("with All, expected 4 files, got %v", all)
	}
}

func TestWalkHonorsNestedGitignore(t *testing.T) {
	tree := testutil.NewTestTree(t).
		WithFile("sub/.gitignore", "secret.txt\n").
		WithFile("sub/secret.txt", "nope\n").
		WithFile("sub/open.txt", "ok\n").
		WithFile("secret.txt", "visible at root\n").
		Build()

	paths := collect(t, tree.Path, Options{})
	want := map[string]bool{
		tree.Abs("secret.txt"):     true, // nested ignore does not apply upward
		tree.Abs("sub/open.txt"):   true,
		tree.Abs("sub/.gitignore"): true,
	}
	if len(paths) != len(want) {
		t.Fatalf("expected %d files, got %v", len(want), paths)
	}
	for _, p := range paths {
		if !want[p] {
			t.Errorf("unexpected entry: %s", p)
		}
	}
}

func TestWalkNegatedPatterns(t *testing.T) {
	tree := testutil.NewTestTree(t).
		WithFile(".gitignore", "*.log\n!important.log\n").
		WithFile("debug.log", "nope\n").
		WithFile("important.log", "keep\n").
		Build()

	paths := collect(t, tree.Path, Options{})
	found := false
	for _, p := range paths {
		if p == tree.Abs("debug.log") {
			t.Error("debug.log should be ignored")
		}
		if p == tree.Abs("important.log") {
			found = true
		}
	}
	if !found {
		t.Error("negated pattern should keep important.log")
	}
}

func TestWalkDotRootPrefixesPaths(t *testing.T) {
	testutil.NewTestTree(t).
		WithFile("a.txt", "hi\n").
		Build().
		Chdir()

	paths := collect(t, ".", Options{})
	if len(paths) != 1 || paths[0] != "./a.txt" {
		t.Fatalf(`expected ["./a.txt"], got %v`, paths)
	}
}

func TestWalkMissingRoot(t *testing.T) {
	var warned bool
	err := Walk(context.Background(), "/does/not/exist", Options{}, func(e Entry) error {
		if e.Err != nil {
			warned = true
		}
		return nil
	})
	if err != nil {
		t.Fatalf("a missing root should be reported, not fatal: %v", err)
	}
	if !warned {
		t.Error("expected an error entry for the missing root")
	}
}
