package scan

import (
	"fmt"
	"time"

	"github.com/hillu/go-yara/v4"
)

// yaraTimeout bounds a single file scan.
const yaraTimeout = 5 * time.Second

// compileYara compiles the configured rule blob once per run. The compiled
// rules are shared read-only across enrichment workers.
func compileYara(blob string) (*yara.Rules, error) {
	compiler, err := yara.NewCompiler()
	if err != nil {
		return nil, fmt.Errorf("yara compiler init: %w", err)
	}
	if err := compiler.AddString(blob, "recon"); err != nil {
		return nil, fmt.Errorf("bad yara_match rules: %w", err)
	}
	rules, err := compiler.GetRules()
	if err != nil {
		return nil, fmt.Errorf("bad yara_match rules: %w", err)
	}
	return rules, nil
}

// yaraMatch scans the content and records the names of the rules that fired.
// Nil content (directory, unreadable file) fires nothing.
func (p *Plan) yaraMatch(content []byte) *string {
	names := make([]string, 0, 1)
	if content != nil {
		var matches yara.MatchRules
		if err := p.rules.ScanMem(content, yara.ScanFlagsFastMode, yaraTimeout, &matches); err == nil {
			for _, m := range matches {
				names = append(names, m.Rule)
			}
		}
	}
	return encodeTokens(names)
}
