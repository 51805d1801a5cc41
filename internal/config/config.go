// Package config handles recon configuration files.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultQuery is the query run when neither the config nor the CLI supply one.
const DefaultQuery = "select * from files"

// ComputedFields describes the opt-in fields to add on to an indexed file.
//
// These fields are either compute-intensive or use-case specific, so each one
// is enabled explicitly. Slice-valued fields distinguish "not configured"
// (nil) from "configured but empty" — the stored column stays NULL only in
// the former case.
type ComputedFields struct {
	// Extension-set classes, evaluated inline with metadata extraction.
	IsArchive  []string `yaml:"is_archive"`
	IsDocument []string `yaml:"is_document"`
	IsMedia    []string `yaml:"is_media"`
	IsCode     []string `yaml:"is_code"`

	// IsIgnored lists ignore files (gitignore syntax) to test entries against.
	IsIgnored []string `yaml:"is_ignored"`

	// Content processors.
	BytesType bool `yaml:"bytes_type"`
	IsBinary  bool `yaml:"is_binary"`
	FileMagic bool `yaml:"file_magic"`
	CRC32     bool `yaml:"crc32"`
	SHA256    bool `yaml:"sha256"`
	SHA512    bool `yaml:"sha512"`
	MD5       bool `yaml:"md5"`
	Simhash   bool `yaml:"simhash"`

	// Matchers. Token lists are compared against the corresponding digest;
	// path/content carry regular expressions; yara carries a rule blob.
	CRC32Match   []string `yaml:"crc32_match"`
	SHA256Match  []string `yaml:"sha256_match"`
	SHA512Match  []string `yaml:"sha512_match"`
	MD5Match     []string `yaml:"md5_match"`
	SimhashMatch []string `yaml:"simhash_match"`
	PathMatch    []string `yaml:"path_match"`
	ContentMatch []string `yaml:"content_match"`
	YaraMatch    string   `yaml:"yara_match"`
}

// ResolveDeps enables processors that configured matchers depend on:
// enabling any <digest>_match implies the <digest> processor, and
// simhash_match implies simhash. One pass is enough — processors have no
// dependencies of their own.
func (cf *ComputedFields) ResolveDeps() {
	if cf.CRC32Match != nil {
		cf.CRC32 = true
	}
	if cf.SHA256Match != nil {
		cf.SHA256 = true
	}
	if cf.SHA512Match != nil {
		cf.SHA512 = true
	}
	if cf.MD5Match != nil {
		cf.MD5 = true
	}
	if cf.SimhashMatch != nil {
		cf.Simhash = true
	}
}

// Source describes what to index and how to query it.
type Source struct {
	Root                      string          `yaml:"root"`
	Query                     string          `yaml:"query"`
	BeforeComputedFieldsQuery string          `yaml:"before_computed_fields_query"`
	DefaultFields             *ComputedFields `yaml:"default_fields"`
	ComputedFields            *ComputedFields `yaml:"computed_fields"`
}

// RootOr returns the configured walk root, or fallback when unset.
func (s *Source) RootOr(fallback string) string {
	if s.Root != "" {
		return s.Root
	}
	return fallback
}

// SelectionQuery returns the query that picks candidate rows for the
// enrichment stage.
func (s *Source) SelectionQuery() string {
	if s.BeforeComputedFieldsQuery != "" {
		return s.BeforeComputedFieldsQuery
	}
	return DefaultQuery
}

// GetDefaultFields returns the inline (metadata-stage) field config, never nil.
func (s *Source) GetDefaultFields() *ComputedFields {
	if s.DefaultFields != nil {
		return s.DefaultFields
	}
	return &ComputedFields{}
}

// GetComputedFields returns the enrichment-stage field config, never nil.
func (s *Source) GetComputedFields() *ComputedFields {
	if s.ComputedFields != nil {
		return s.ComputedFields
	}
	return &ComputedFields{}
}

// Config is the top-level configuration object.
type Config struct {
	Source Source `yaml:"source"`
}

// Parse parses configuration from YAML text. Unknown keys are rejected so a
// typo in a computed_fields name fails at startup instead of silently
// disabling a matcher.
func Parse(text []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(text))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Load loads configuration from a file path.
func Load(path string) (*Config, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
