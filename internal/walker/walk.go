// Package walker produces the stream of filesystem entries to index.
package walker

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Entry is one walked filesystem entry. When Err is set the entry could not
// be read and Info is nil; the walk itself continues.
type Entry struct {
	Path string      // as walked: the root argument joined with the entry's path below it
	Info fs.FileInfo // lstat record
	Err  error
}

// Options control walker behavior.
type Options struct {
	// All disables ignore-file consultation and walks everything.
	All bool
}

// ignoreScope is one compiled ignore file, matched against paths relative to
// the directory that contains it.
type ignoreScope struct {
	dir     string
	matcher *gitignore.GitIgnore
}

// Walk walks the tree rooted at root and calls fn once per non-directory
// entry. Hidden files are included. Unless opts.All is set, .gitignore files
// in the root's ancestors and in every directory walked are honored.
//
// Errors reading a directory or stat-ing an entry are reported through fn
// with Err set and do not stop the walk. Ordering follows filepath.WalkDir
// (lexical), so it is stable within a run.
func Walk(ctx context.Context, root string, opts Options, fn func(Entry) error) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	var scopes []ignoreScope
	if !opts.All {
		scopes = ancestorScopes(absRoot)
	}

	ignored := func(absPath string, isDir bool) bool {
		for _, s := range scopes {
			rel, err := filepath.Rel(s.dir, absPath)
			if err != nil || strings.HasPrefix(rel, "..") {
				continue
			}
			rel = filepath.ToSlash(rel)
			if s.matcher.MatchesPath(rel) {
				return true
			}
			if isDir && s.matcher.MatchesPath(rel+"/") {
				return true
			}
		}
		return false
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			// Unreadable directory or entry: report and move on.
			if walkErr := fn(Entry{Path: path, Err: err}); walkErr != nil {
				return walkErr
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		abs := filepath.Join(absRoot, mustRel(root, path))

		if d.IsDir() {
			if !opts.All {
				if path != root && ignored(abs, true) {
					return fs.SkipDir
				}
				if s := loadScope(abs); s != nil {
					scopes = append(scopes, *s)
				}
			}
			return nil
		}

		if !opts.All && ignored(abs, false) {
			return nil
		}

		display := path
		if root == "." {
			// Keep the root prefix the caller gave us: "./a.txt", not "a.txt".
			display = "./" + filepath.ToSlash(path)
		}

		info, err := d.Info()
		if err != nil {
			// Entry disappeared between readdir and stat.
			return fn(Entry{Path: display, Err: err})
		}
		return fn(Entry{Path: display, Info: info})
	})
}

// ancestorScopes collects ignore files from the root's parent directories,
// stopping at the repository boundary (a directory containing .git) or the
// filesystem root. Patterns in an ancestor's .gitignore apply to everything
// below it, including our walk root.
func ancestorScopes(absRoot string) []ignoreScope {
	var scopes []ignoreScope
	dir := absRoot
	for {
		atRepoRoot := false
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			atRepoRoot = true
		}
		parent := filepath.Dir(dir)
		if atRepoRoot || parent == dir {
			break
		}
		dir = parent
		if s := loadScope(dir); s != nil {
			scopes = append(scopes, *s)
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}
	}
	return scopes
}

func loadScope(dir string) *ignoreScope {
	path := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	matcher, err := gitignore.CompileIgnoreFile(path)
	if err != nil {
		// A malformed ignore file should not abort the walk.
		return nil
	}
	return &ignoreScope{dir: dir, matcher: matcher}
}

func mustRel(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}
