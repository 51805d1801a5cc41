// Package fsmeta turns walked entries into base file rows: path identity,
// stat metadata, ownership, and the cheap extension-set classes. Nothing in
// this package reads file contents.
package fsmeta

import (
	"io/fs"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rusty-ferris-club/recon/internal/index"
)

// FromEntry builds the base row for one walked entry. The path is stored as
// walked; abs_path is absolute with the directory prefix's symlinks resolved,
// so the same file always lands on the same row.
func FromEntry(path string, info fs.FileInfo) (*index.FileRow, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		abs = filepath.Join(resolved, filepath.Base(abs))
	}

	row := &index.FileRow{
		EntryTime: time.Now().UTC().Format(time.RFC3339),
		AbsPath:   abs,
		Path:      path,
	}

	if ext := strings.TrimPrefix(filepath.Ext(info.Name()), "."); ext != "" {
		lower := strings.ToLower(ext)
		row.Ext = &lower
	}

	mode := info.Mode()
	modeStr := mode.String()
	row.Mode = &modeStr
	row.IsDir = boolPtr(mode.IsDir())
	row.IsFile = boolPtr(mode.IsRegular())
	row.IsSymlink = boolPtr(mode&fs.ModeSymlink != 0)

	size := info.Size()
	row.Size = &size
	row.IsEmpty = size == 0

	mtime := info.ModTime().UTC().Format(time.RFC3339)
	row.Mtime = &mtime

	applySys(row, info)
	resolveOwnership(row)
	return row, nil
}

// resolveOwnership fills user/group names from uid/gid when the platform
// provided them. Lookup failures (deleted accounts, NSS issues) leave the
// names null.
func resolveOwnership(row *index.FileRow) {
	if row.UID != nil {
		if u, err := user.LookupId(strconv.FormatInt(*row.UID, 10)); err == nil {
			row.User = &u.Username
		}
	}
	if row.GID != nil {
		if g, err := user.LookupGroupId(strconv.FormatInt(*row.GID, 10)); err == nil {
			row.Group = &g.Name
		}
	}
}

func boolPtr(b bool) *bool {
	return &b
}
