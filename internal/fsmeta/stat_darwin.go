//go:build darwin

package fsmeta

import (
	"io/fs"
	"syscall"
	"time"

	"github.com/rusty-ferris-club/recon/internal/index"
)

// applySys copies ownership and timestamps out of the raw stat record.
func applySys(row *index.FileRow, info fs.FileInfo) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return
	}
	uid := int64(st.Uid)
	gid := int64(st.Gid)
	row.UID = &uid
	row.GID = &gid

	atime := timespecRFC3339(st.Atimespec)
	ctime := timespecRFC3339(st.Ctimespec)
	mtime := timespecRFC3339(st.Mtimespec)
	row.Atime = &atime
	row.Ctime = &ctime
	row.Mtime = &mtime
}

func timespecRFC3339(ts syscall.Timespec) string {
	return time.Unix(ts.Sec, ts.Nsec).UTC().Format(time.RFC3339)
}
