package scan

import (
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"strconv"
	"testing"

	"github.com/rusty-ferris-club/recon/internal/config"
	"github.com/rusty-ferris-club/recon/internal/index"
	"github.com/rusty-ferris-club/recon/internal/testutil"
)

// Reference digests of "hi\n".
const (
	hiSHA256 = "98ea6e4f216f2fb4b69fff9b3a44842c38686ca685f3f55dc48c5d3fb1107be4"
	hiMD5    = "764efa883dda1e11db47671c4a3bbd9e"
)

func fileRow(absPath string) *index.FileRow {
	isFile := true
	return &index.FileRow{AbsPath: absPath, Path: absPath, IsFile: &isFile}
}

// countingOpener wraps the default opener and counts opens per path.
type countingOpener struct {
	opens map[string]int
}

func (c *countingOpener) open(path string) (io.ReadCloser, error) {
	if c.opens == nil {
		c.opens = map[string]int{}
	}
	c.opens[path]++
	return os.Open(path)
}

func mustPlan(t *testing.T, cf *config.ComputedFields) *Plan {
	t.Helper()
	p, err := BuildPlan(cf)
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}
	return p
}

func TestDigestDeterminism(t *testing.T) {
	tree := testutil.NewTestTree(t).
		WithFile("a.txt", "hi\n").
		Build()

	p := mustPlan(t, &config.ComputedFields{
		CRC32: true, MD5: true, SHA256: true, SHA512: true,
	})

	row := fileRow(tree.Abs("a.txt"))
	if err := p.Enrich(row); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}

	if row.SHA256 == nil || *row.SHA256 != hiSHA256 {
		t.Errorf("unexpected sha256: %v", row.SHA256)
	}
	if row.MD5 == nil || *row.MD5 != hiMD5 {
		t.Errorf("unexpected md5: %v", row.MD5)
	}

	sum512 := sha512.Sum512([]byte("hi\n"))
	if row.SHA512 == nil || *row.SHA512 != hex.EncodeToString(sum512[:]) {
		t.Errorf("unexpected sha512: %v", row.SHA512)
	}
	wantCRC := strconv.FormatUint(uint64(crc32.ChecksumIEEE([]byte("hi\n"))), 16)
	if row.CRC32 == nil || *row.CRC32 != wantCRC {
		t.Errorf("unexpected crc32: %v, want %s", row.CRC32, wantCRC)
	}

	// Re-running over the same bytes produces the same output.
	again := fileRow(tree.Abs("a.txt"))
	if err := p.Enrich(again); err != nil {
		t.Fatalf("second Enrich failed: %v", err)
	}
	if *again.SHA256 != *row.SHA256 || *again.CRC32 != *row.CRC32 {
		t.Error("digests must be deterministic")
	}
}

func TestSingleOpenPerFile(t *testing.T) {
	tree := testutil.NewTestTree(t).
		WithFile("a.txt", "some text content\n").
		Build()

	p := mustPlan(t, &config.ComputedFields{
		CRC32: true, MD5: true, SHA256: true, SHA512: true,
		BytesType: true, IsBinary: true, Simhash: true,
		ContentMatch: []string{"text"},
	})
	opener := &countingOpener{}
	p.Open = opener.open

	row := fileRow(tree.Abs("a.txt"))
	if err := p.Enrich(row); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}

	if got := opener.opens[tree.Abs("a.txt")]; got != 1 {
		t.Errorf("expected exactly one open with all processors enabled, got %d", got)
	}
	if row.SHA256 == nil || row.CRC32 == nil || row.Simhash == nil || row.BytesType == nil {
		t.Error("all stream-derived fields should be set from the single pass")
	}
	if row.ContentMatch == nil || *row.ContentMatch != `["text"]` {
		t.Errorf("unexpected content_match: %v", row.ContentMatch)
	}
}

func TestBinaryClassificationConsistency(t *testing.T) {
	tree := testutil.NewTestTree(t).
		WithFile("a.txt", "plain text\n").
		WithBinaryFile("b.bin", []byte{0x7F, 'E', 'L', 'F', 0x00, 0x01, 0x02}).
		Build()

	p := mustPlan(t, &config.ComputedFields{BytesType: true, IsBinary: true})

	for _, tc := range []struct {
		path   string
		binary bool
	}{
		{"a.txt", false},
		{"b.bin", true},
	} {
		row := fileRow(tree.Abs(tc.path))
		if err := p.Enrich(row); err != nil {
			t.Fatalf("Enrich(%s) failed: %v", tc.path, err)
		}
		if row.IsBinary == nil || row.BytesType == nil {
			t.Fatalf("%s: expected both fields set", tc.path)
		}
		if *row.IsBinary != tc.binary {
			t.Errorf("%s: expected is_binary=%v", tc.path, tc.binary)
		}
		if *row.IsBinary != IsBinaryType(*row.BytesType) {
			t.Errorf("%s: is_binary disagrees with bytes_type %q", tc.path, *row.BytesType)
		}
	}
}

func TestIsBinaryWithoutBytesType(t *testing.T) {
	tree := testutil.NewTestTree(t).
		WithBinaryFile("b.bin", []byte{0x00, 0x01}).
		Build()

	p := mustPlan(t, &config.ComputedFields{IsBinary: true})
	row := fileRow(tree.Abs("b.bin"))
	if err := p.Enrich(row); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}
	if row.IsBinary == nil || !*row.IsBinary {
		t.Error("is_binary should derive from the peek without bytes_type configured")
	}
	if row.BytesType != nil {
		t.Error("bytes_type should stay null when not configured")
	}
}

func TestDirectorySkipsContent(t *testing.T) {
	p := mustPlan(t, &config.ComputedFields{
		SHA256:      true,
		SHA256Match: []string{hiSHA256},
	})
	opener := &countingOpener{}
	p.Open = opener.open

	isFile := false
	isDir := true
	row := &index.FileRow{AbsPath: "/tmp/tree/sub", IsFile: &isFile, IsDir: &isDir}
	if err := p.Enrich(row); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}

	if len(opener.opens) != 0 {
		t.Error("directories must not be opened")
	}
	if row.SHA256 != nil {
		t.Error("content fields stay null for directories")
	}
	if row.SHA256Match == nil || *row.SHA256Match != "[]" {
		t.Errorf("an enabled matcher with nothing to compare records [], got %v", row.SHA256Match)
	}
}

func TestUnreadableFileLeavesContentNull(t *testing.T) {
	p := mustPlan(t, &config.ComputedFields{
		SHA256:      true,
		SHA256Match: []string{hiSHA256},
	})
	p.Open = func(path string) (io.ReadCloser, error) {
		return nil, errors.New("permission denied")
	}

	row := fileRow("/tmp/tree/locked.txt")
	err := p.Enrich(row)
	if err == nil {
		t.Fatal("expected an enrichment error for an unreadable file")
	}
	if row.SHA256 != nil {
		t.Error("content fields stay null on read failure")
	}
	if row.SHA256Match == nil || *row.SHA256Match != "[]" {
		t.Errorf("matchers still record [] on read failure, got %v", row.SHA256Match)
	}
	if row.EntryTime == "" {
		t.Error("entry_time is refreshed even on failure")
	}
}

func TestFileMagic(t *testing.T) {
	tree := testutil.NewTestTree(t).
		WithFile("a.txt", "hi\n").
		Build()

	p := mustPlan(t, &config.ComputedFields{FileMagic: true})
	p.Magic = func(path string) (string, error) {
		return fmt.Sprintf("ASCII text (%s)", path), nil
	}

	row := fileRow(tree.Abs("a.txt"))
	if err := p.Enrich(row); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}
	if row.FileMagic == nil || *row.FileMagic == "" {
		t.Error("expected file_magic to be captured")
	}
}

func TestNeedsEnrichment(t *testing.T) {
	if mustPlan(t, &config.ComputedFields{}).NeedsEnrichment() {
		t.Error("an empty plan has no work")
	}
	if !mustPlan(t, &config.ComputedFields{PathMatch: []string{"x"}}).NeedsEnrichment() {
		t.Error("a matcher-only plan still has work")
	}
	if !mustPlan(t, &config.ComputedFields{MD5Match: []string{"abc"}}).NeedsEnrichment() {
		t.Error("md5_match implies work")
	}
}

func TestBuildPlanRejectsBadRegex(t *testing.T) {
	if _, err := BuildPlan(&config.ComputedFields{PathMatch: []string{"("}}); err == nil {
		t.Error("bad path_match regex must fail at plan build")
	}
	if _, err := BuildPlan(&config.ComputedFields{ContentMatch: []string{"["}}); err == nil {
		t.Error("bad content_match regex must fail at plan build")
	}
}
