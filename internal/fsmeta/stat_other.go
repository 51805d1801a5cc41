//go:build !linux && !darwin

package fsmeta

import (
	"io/fs"

	"github.com/rusty-ferris-club/recon/internal/index"
)

// applySys is a no-op where the stat record exposes no ownership or extra
// timestamps; mtime is already set from fs.FileInfo.
func applySys(row *index.FileRow, info fs.FileInfo) {
}
