package scan

import (
	"bytes"
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"strconv"
	"time"

	"github.com/mfonda/simhash"

	"github.com/rusty-ferris-club/recon/internal/index"
)

// Enrich computes every enabled field for one candidate row, in place. The
// file is opened at most once: a single streaming pass feeds all digest
// writers, the byte-type peek buffer, and (when simhash, content_match, or
// yara_match need it) a full-content buffer.
//
// Directories, symlinks, and unreadable files keep their content fields
// null. Matchers still run — an enabled matcher with nothing to compare
// against records an empty array, never null. The returned error is
// informational: the row is valid to store either way.
func (p *Plan) Enrich(row *index.FileRow) error {
	row.EntryTime = time.Now().UTC().Format(time.RFC3339)

	isRegular := row.IsFile != nil && *row.IsFile

	var content []byte
	var procErr error
	if isRegular && p.readsStream() {
		content, procErr = p.streamContent(row)
	}
	if p.fields.FileMagic && isRegular && procErr == nil {
		if magic, err := p.Magic(row.AbsPath); err != nil {
			procErr = err
		} else {
			row.FileMagic = &magic
		}
	}

	p.applyMatchers(row, content)

	if procErr != nil {
		return fmt.Errorf("enrich %s: %w", row.AbsPath, procErr)
	}
	return nil
}

// prefixWriter retains the first PeekSize bytes passing through the stream.
type prefixWriter struct {
	buf []byte
}

func (w *prefixWriter) Write(p []byte) (int, error) {
	if rest := PeekSize - len(w.buf); rest > 0 {
		if len(p) < rest {
			rest = len(p)
		}
		w.buf = append(w.buf, p[:rest]...)
	}
	return len(p), nil
}

// streamContent performs the single read pass and assigns the stream-derived
// fields. Fields are only written after the whole stream succeeded, so a
// short read never leaves a truncated digest behind. Returns the full
// content when a consumer needs it.
func (p *Plan) streamContent(row *index.FileRow) ([]byte, error) {
	f, err := p.Open(row.AbsPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var writers []io.Writer

	var peek *prefixWriter
	if p.fields.BytesType || p.fields.IsBinary {
		peek = &prefixWriter{}
		writers = append(writers, peek)
	}

	var crcH hash.Hash32
	if p.fields.CRC32 {
		crcH = crc32.NewIEEE()
		writers = append(writers, crcH)
	}
	var md5H, sha256H, sha512H hash.Hash
	if p.fields.MD5 {
		md5H = md5.New()
		writers = append(writers, md5H)
	}
	if p.fields.SHA256 {
		sha256H = sha256.New()
		writers = append(writers, sha256H)
	}
	if p.fields.SHA512 {
		sha512H = sha512.New()
		writers = append(writers, sha512H)
	}

	var full bytes.Buffer
	if p.needsFullContent() {
		writers = append(writers, &full)
	}

	if _, err := io.Copy(io.MultiWriter(writers...), f); err != nil {
		return nil, err
	}

	if peek != nil {
		bt := DetectByteType(peek.buf)
		if p.fields.BytesType {
			row.BytesType = &bt
		}
		if p.fields.IsBinary {
			b := IsBinaryType(bt)
			row.IsBinary = &b
		}
	}
	if crcH != nil {
		s := strconv.FormatUint(uint64(crcH.Sum32()), 16)
		row.CRC32 = &s
	}
	if md5H != nil {
		s := hex.EncodeToString(md5H.Sum(nil))
		row.MD5 = &s
	}
	if sha256H != nil {
		s := hex.EncodeToString(sha256H.Sum(nil))
		row.SHA256 = &s
	}
	if sha512H != nil {
		s := hex.EncodeToString(sha512H.Sum(nil))
		row.SHA512 = &s
	}
	if p.fields.Simhash {
		h := simhash.Simhash(simhash.NewWordFeatureSet(full.Bytes()))
		s := strconv.FormatUint(h, 16)
		row.Simhash = &s
	}
	return full.Bytes(), nil
}
