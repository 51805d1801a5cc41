package scan

import (
	"encoding/json"
	"math/bits"
	"strconv"
	"strings"

	"github.com/rusty-ferris-club/recon/internal/index"
)

// SimhashDistance is the maximum Hamming distance at which a simhash_match
// token is considered a match. Identical hashes are distance 0, so exact
// tokens always match.
const SimhashDistance = 3

// applyMatchers evaluates every enabled matcher and records the JSON array
// of matched input tokens on the row. Disabled matchers leave their field
// null.
func (p *Plan) applyMatchers(row *index.FileRow, content []byte) {
	f := &p.fields
	if f.CRC32Match != nil {
		row.CRC32Match = valueMatch(row.CRC32, f.CRC32Match)
	}
	if f.SHA256Match != nil {
		row.SHA256Match = valueMatch(row.SHA256, f.SHA256Match)
	}
	if f.SHA512Match != nil {
		row.SHA512Match = valueMatch(row.SHA512, f.SHA512Match)
	}
	if f.MD5Match != nil {
		row.MD5Match = valueMatch(row.MD5, f.MD5Match)
	}
	if f.SimhashMatch != nil {
		row.SimhashMatch = simhashMatch(row.Simhash, f.SimhashMatch)
	}
	if f.PathMatch != nil {
		row.PathMatch = patternMatch(p.pathRes, func(cp compiledPattern) bool {
			// Path regexes target the canonical absolute path.
			return cp.re.MatchString(row.AbsPath)
		})
	}
	if f.ContentMatch != nil {
		row.ContentMatch = patternMatch(p.contentRes, func(cp compiledPattern) bool {
			return content != nil && cp.re.Match(content)
		})
	}
	if f.YaraMatch != "" {
		row.YaraMatch = p.yaraMatch(content)
	}
}

// valueMatch compares a computed digest against the configured tokens,
// case-insensitively. A null digest (directory, unreadable file) matches
// nothing.
func valueMatch(value *string, tokens []string) *string {
	matched := make([]string, 0, 1)
	if value != nil {
		for _, t := range tokens {
			if strings.EqualFold(t, *value) {
				matched = append(matched, t)
			}
		}
	}
	return encodeTokens(matched)
}

// simhashMatch accepts a token when its Hamming distance from the row's
// simhash is at most SimhashDistance. Tokens are hex, the same encoding the
// simhash processor emits; unparseable tokens match nothing.
func simhashMatch(value *string, tokens []string) *string {
	matched := make([]string, 0, 1)
	if value != nil {
		if have, err := strconv.ParseUint(*value, 16, 64); err == nil {
			for _, t := range tokens {
				want, err := strconv.ParseUint(t, 16, 64)
				if err != nil {
					continue
				}
				if bits.OnesCount64(have^want) <= SimhashDistance {
					matched = append(matched, t)
				}
			}
		}
	}
	return encodeTokens(matched)
}

func patternMatch(patterns []compiledPattern, test func(compiledPattern) bool) *string {
	matched := make([]string, 0, 1)
	for _, cp := range patterns {
		if test(cp) {
			matched = append(matched, cp.src)
		}
	}
	return encodeTokens(matched)
}

// encodeTokens renders the matched-token list as a JSON array. The list is
// never nil here: a matcher that ran and matched nothing records [].
func encodeTokens(tokens []string) *string {
	b, err := json.Marshal(tokens)
	if err != nil {
		// A []string cannot fail to marshal.
		empty := "[]"
		return &empty
	}
	s := string(b)
	return &s
}
