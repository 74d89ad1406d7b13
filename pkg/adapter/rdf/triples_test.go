package rdf

import (
	"strings"
	"testing"
)

func TestParseTriples(t *testing.T) {
	doc := `# comment line
<http://example.org/a> <http://example.org/name> "plain literal" .
<http://example.org/a> <http://example.org/link> <http://example.org/b> .

<http://example.org/b> <http://example.org/name> "typed"^^<http://www.w3.org/2001/XMLSchema#string> .
<http://example.org/b> <http://example.org/label> "tagged"@en .
<http://example.org/b> <http://example.org/note> "esc\"aped \t tab é" .
`
	set, err := parseTriples(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parseTriples failed: %v", err)
	}

	if got := set.literal("http://example.org/a", "http://example.org/name"); got != "plain literal" {
		t.Fatalf("unexpected literal %q", got)
	}
	if got := set.iri("http://example.org/a", "http://example.org/link"); got != "http://example.org/b" {
		t.Fatalf("unexpected iri %q", got)
	}
	if got := set.literal("http://example.org/b", "http://example.org/name"); got != "typed" {
		t.Fatalf("datatype tag not stripped: %q", got)
	}
	if got := set.literal("http://example.org/b", "http://example.org/label"); got != "tagged" {
		t.Fatalf("language tag not stripped: %q", got)
	}
	if got := set.literal("http://example.org/b", "http://example.org/note"); got != "esc\"aped \t tab é" {
		t.Fatalf("escapes not decoded: %q", got)
	}

	if len(set.subjects) != 2 || set.subjects[0] != "http://example.org/a" {
		t.Fatalf("subject order lost: %v", set.subjects)
	}
}

func TestParseTriplesErrors(t *testing.T) {
	bad := []string{
		`<http://a> <http://p> "unterminated .`,
		`not-an-iri <http://p> "x" .`,
		`<http://a> <http://p> "x"`,
		`<http://a> <http://p> "bad\qescape" .`,
	}
	for _, line := range bad {
		if _, err := parseTriples(strings.NewReader(line)); err == nil {
			t.Fatalf("expected an error for %q", line)
		}
	}
}

func TestSubjectsOfType(t *testing.T) {
	doc := `<http://example.org/d1> <` + rdfType + `> <` + classDataset + `> .
<http://example.org/p1> <` + rdfType + `> <` + classProject + `> .
<http://example.org/d2> <` + rdfType + `> <` + classDataset + `> .
`
	set, err := parseTriples(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parseTriples failed: %v", err)
	}
	datasets := set.subjectsOfType(classDataset)
	if len(datasets) != 2 || datasets[0] != "http://example.org/d1" || datasets[1] != "http://example.org/d2" {
		t.Fatalf("unexpected datasets %v", datasets)
	}
}
