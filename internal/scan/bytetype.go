package scan

import (
	"bytes"
	"unicode/utf8"
)

// PeekSize is how much of a file the byte-type classifier looks at.
const PeekSize = 1024

// Byte-type classifications for bytes_type.
const (
	ByteTypeBinary   = "binary"
	ByteTypeUTF8     = "utf8"
	ByteTypeUTF8BOM  = "utf8_bom"
	ByteTypeUTF16LE  = "utf16_le"
	ByteTypeUTF16BE  = "utf16_be"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DetectByteType classifies a content prefix. BOMs win; otherwise a NUL byte
// or invalid UTF-8 marks the content binary. An empty prefix is utf8 — an
// empty file is valid text.
func DetectByteType(peek []byte) string {
	switch {
	case bytes.HasPrefix(peek, bomUTF8):
		return ByteTypeUTF8BOM
	case bytes.HasPrefix(peek, bomUTF16LE):
		return ByteTypeUTF16LE
	case bytes.HasPrefix(peek, bomUTF16BE):
		return ByteTypeUTF16BE
	}
	if bytes.IndexByte(peek, 0x00) >= 0 {
		return ByteTypeBinary
	}
	// The peek may cut a rune in half; drop the partial tail before
	// validating.
	trimmed := peek
	for i := 1; i < utf8.UTFMax && i <= len(peek); i++ {
		if utf8.RuneStart(peek[len(peek)-i]) {
			if !utf8.FullRune(peek[len(peek)-i:]) {
				trimmed = peek[:len(peek)-i]
			}
			break
		}
	}
	if utf8.Valid(trimmed) {
		return ByteTypeUTF8
	}
	return ByteTypeBinary
}

// IsBinaryType reports whether a bytes_type value counts as binary.
func IsBinaryType(t string) bool {
	return t == ByteTypeBinary
}
