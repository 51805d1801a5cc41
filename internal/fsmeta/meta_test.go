package fsmeta

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/rusty-ferris-club/recon/internal/testutil"
)

func statEntry(t *testing.T, path string) os.FileInfo {
	t.Helper()
	info, err := os.Lstat(path)
	if err != nil {
		t.Fatalf("failed to lstat %s: %v", path, err)
	}
	return info
}

func TestFromEntryBasics(t *testing.T) {
	tree := testutil.NewTestTree(t).
		WithFile("Report.PDF", "hi\n").
		Build()

	path := tree.Abs("Report.PDF")
	row, err := FromEntry(path, statEntry(t, path))
	if err != nil {
		t.Fatalf("FromEntry failed: %v", err)
	}

	if !filepath.IsAbs(row.AbsPath) {
		t.Errorf("abs_path should be absolute, got %q", row.AbsPath)
	}
	if row.Path != path {
		t.Errorf("path should be stored as walked, got %q", row.Path)
	}
	if row.Ext == nil || *row.Ext != "pdf" {
		t.Errorf("ext should be lowercase without the dot, got %v", row.Ext)
	}
	if row.IsFile == nil || !*row.IsFile {
		t.Error("expected is_file true")
	}
	if row.IsDir == nil || *row.IsDir {
		t.Error("expected is_dir false")
	}
	if row.IsSymlink == nil || *row.IsSymlink {
		t.Error("expected is_symlink false")
	}
	if row.Size == nil || *row.Size != 3 {
		t.Errorf("expected size 3, got %v", row.Size)
	}
	if row.IsEmpty {
		t.Error("a 3-byte file is not empty")
	}
	if row.Mode == nil || !strings.HasPrefix(*row.Mode, "-") {
		t.Errorf("expected a symbolic file mode, got %v", row.Mode)
	}
	if row.Mtime == nil || *row.Mtime == "" {
		t.Error("expected mtime to be recorded")
	}
	if row.EntryTime == "" {
		t.Error("expected entry_time to be stamped")
	}
}

func TestFromEntryNoExtension(t *testing.T) {
	tree := testutil.NewTestTree(t).
		WithFile("Makefile", "").
		Build()

	path := tree.Abs("Makefile")
	row, err := FromEntry(path, statEntry(t, path))
	if err != nil {
		t.Fatalf("FromEntry failed: %v", err)
	}
	if row.Ext != nil {
		t.Errorf("expected null ext, got %q", *row.Ext)
	}
	if !row.IsEmpty {
		t.Error("a zero-byte file is empty")
	}
}

func TestFromEntryOwnership(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("ownership fields are unix-only")
	}
	tree := testutil.NewTestTree(t).
		WithFile("a.txt", "hi\n").
		Build()

	path := tree.Abs("a.txt")
	row, err := FromEntry(path, statEntry(t, path))
	if err != nil {
		t.Fatalf("FromEntry failed: %v", err)
	}
	if row.UID == nil || row.GID == nil {
		t.Fatal("expected uid/gid on unix")
	}
	if row.Atime == nil || row.Ctime == nil {
		t.Error("expected atime/ctime on unix")
	}
}

func TestFromEntrySymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	tree := testutil.NewTestTree(t).
		WithFile("target.txt", "hi\n").
		Build()

	link := tree.Abs("link.txt")
	if err := os.Symlink(tree.Abs("target.txt"), link); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	row, err := FromEntry(link, statEntry(t, link))
	if err != nil {
		t.Fatalf("FromEntry failed: %v", err)
	}
	if row.IsSymlink == nil || !*row.IsSymlink {
		t.Error("expected is_symlink true")
	}
	if row.IsFile == nil || *row.IsFile {
		t.Error("a symlink is not a regular file")
	}
}
