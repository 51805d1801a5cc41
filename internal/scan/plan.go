// Package scan implements the computed-field engine: content processors and
// matchers, assembled per run into a Plan that enriches candidate rows.
package scan

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/hillu/go-yara/v4"

	"github.com/rusty-ferris-club/recon/internal/config"
)

// OpenFunc opens a file's content for streaming. Tests swap it to count
// opens and to fake unreadable files.
type OpenFunc func(path string) (io.ReadCloser, error)

// MagicFunc produces the one-line file(1) description for a path.
type MagicFunc func(path string) (string, error)

// compiledPattern keeps the source text next to its compiled form; the
// source is what gets recorded as the matched token.
type compiledPattern struct {
	src string
	re  *regexp.Regexp
}

// Plan is the per-run capability set: which processors and matchers are
// enabled, with regexes and YARA rules compiled once and shared read-only
// across enrichment workers.
type Plan struct {
	fields     config.ComputedFields
	pathRes    []compiledPattern
	contentRes []compiledPattern
	rules      *yara.Rules

	// Open and Magic are swappable for tests.
	Open  OpenFunc
	Magic MagicFunc
}

// BuildPlan validates and compiles the computed-field configuration.
// Matcher dependencies are resolved first, so enabling md5_match alone also
// runs the md5 processor. Bad regexes and bad YARA rules are fatal here,
// before any file is touched.
func BuildPlan(cf *config.ComputedFields) (*Plan, error) {
	fields := *cf
	fields.ResolveDeps()

	p := &Plan{
		fields: fields,
		Open:   defaultOpen,
		Magic:  defaultMagic,
	}

	for _, src := range fields.PathMatch {
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("bad path_match pattern %q: %w", src, err)
		}
		p.pathRes = append(p.pathRes, compiledPattern{src: src, re: re})
	}
	for _, src := range fields.ContentMatch {
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("bad content_match pattern %q: %w", src, err)
		}
		p.contentRes = append(p.contentRes, compiledPattern{src: src, re: re})
	}

	if fields.YaraMatch != "" {
		rules, err := compileYara(fields.YaraMatch)
		if err != nil {
			return nil, err
		}
		p.rules = rules
	}
	return p, nil
}

// NeedsEnrichment reports whether the plan has any work at all; with nothing
// enabled the coordinator skips the selection and enrichment stages.
func (p *Plan) NeedsEnrichment() bool {
	f := &p.fields
	return f.BytesType || f.IsBinary || f.FileMagic ||
		f.CRC32 || f.MD5 || f.SHA256 || f.SHA512 || f.Simhash ||
		f.CRC32Match != nil || f.MD5Match != nil || f.SHA256Match != nil ||
		f.SHA512Match != nil || f.SimhashMatch != nil ||
		f.PathMatch != nil || f.ContentMatch != nil || f.YaraMatch != ""
}

// readsStream reports whether any processor or matcher consumes the file's
// byte stream (file_magic shells out and is not part of the stream).
func (p *Plan) readsStream() bool {
	f := &p.fields
	return f.BytesType || f.IsBinary ||
		f.CRC32 || f.MD5 || f.SHA256 || f.SHA512 || f.Simhash ||
		f.ContentMatch != nil || f.YaraMatch != ""
}

// needsFullContent reports whether some consumer requires the entire content
// in memory rather than a streaming pass.
func (p *Plan) needsFullContent() bool {
	return p.fields.Simhash || p.fields.ContentMatch != nil || p.fields.YaraMatch != ""
}

func defaultOpen(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// defaultMagic runs the OS `file` utility and captures its brief, single-line
// description.
func defaultMagic(path string) (string, error) {
	out, err := exec.Command("file", "-b", path).Output()
	if err != nil {
		return "", fmt.Errorf("file magic on %s: %w", path, err)
	}
	return strings.TrimSpace(string(out)), nil
}
