package fsmeta

import (
	"fmt"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/rusty-ferris-club/recon/internal/config"
	"github.com/rusty-ferris-club/recon/internal/index"
)

// Classifier applies the configured extension-set classes and ignore-file
// membership to base rows. Ignore files are compiled once per run.
type Classifier struct {
	fields *config.ComputedFields
	ignore []ignoreFile
}

type ignoreFile struct {
	dir     string
	matcher *gitignore.GitIgnore
}

// NewClassifier compiles the ignore files named by is_ignored. A missing or
// unreadable ignore file is a configuration error.
func NewClassifier(fields *config.ComputedFields) (*Classifier, error) {
	c := &Classifier{fields: fields}
	for _, path := range fields.IsIgnored {
		matcher, err := gitignore.CompileIgnoreFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load ignore file %s: %w", path, err)
		}
		abs, err := filepath.Abs(filepath.Dir(path))
		if err != nil {
			return nil, err
		}
		// Rows carry canonical absolute paths; canonicalize the ignore
		// file's directory the same way so relative matching lines up.
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			abs = resolved
		}
		c.ignore = append(c.ignore, ignoreFile{dir: abs, matcher: matcher})
	}
	return c, nil
}

// Apply sets the class fields on a base row. A class that is not configured
// stays null; a configured class is true iff the row's extension is in the
// set.
func (c *Classifier) Apply(row *index.FileRow) {
	row.IsArchive = extClass(row, c.fields.IsArchive)
	row.IsDocument = extClass(row, c.fields.IsDocument)
	row.IsMedia = extClass(row, c.fields.IsMedia)
	row.IsCode = extClass(row, c.fields.IsCode)

	if c.fields.IsIgnored != nil {
		ignored := c.matchesIgnore(row)
		row.IsIgnored = &ignored
	}
}

func extClass(row *index.FileRow, set []string) *bool {
	if set == nil {
		return nil
	}
	member := false
	if row.Ext != nil {
		for _, v := range set {
			if strings.EqualFold(*row.Ext, v) {
				member = true
				break
			}
		}
	}
	return &member
}

// matchesIgnore tests the row's absolute path against every configured
// ignore file. Patterns are relative to the directory holding the ignore
// file; paths outside that directory cannot match it.
func (c *Classifier) matchesIgnore(row *index.FileRow) bool {
	isDir := row.IsDir != nil && *row.IsDir
	for _, ig := range c.ignore {
		rel, err := filepath.Rel(ig.dir, row.AbsPath)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		rel = filepath.ToSlash(rel)
		if ig.matcher.MatchesPath(rel) {
			return true
		}
		if isDir && ig.matcher.MatchesPath(rel+"/") {
			return true
		}
	}
	return false
}
