package rdf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// object is a triple object: an IRI or a literal.
type object struct {
	value string
	iri   bool
}

// tripleSet indexes a parsed document by subject and predicate.
type tripleSet struct {
	// subjects keeps first-seen order for deterministic output.
	subjects []string
	triples  map[string]map[string][]object
}

func (t *tripleSet) add(subject, predicate string, obj object) {
	if t.triples == nil {
		t.triples = map[string]map[string][]object{}
	}
	preds, ok := t.triples[subject]
	if !ok {
		preds = map[string][]object{}
		t.triples[subject] = preds
		t.subjects = append(t.subjects, subject)
	}
	preds[predicate] = append(preds[predicate], obj)
}

// objects returns every object under a subject/predicate pair.
func (t *tripleSet) objects(subject, predicate string) []object {
	return t.triples[subject][predicate]
}

// literal returns the first literal object, or "".
func (t *tripleSet) literal(subject, predicate string) string {
	for _, o := range t.objects(subject, predicate) {
		if !o.iri {
			return o.value
		}
	}
	return ""
}

// iri returns the first IRI object, or "".
func (t *tripleSet) iri(subject, predicate string) string {
	for _, o := range t.objects(subject, predicate) {
		if o.iri {
			return o.value
		}
	}
	return ""
}

// subjectsOfType returns every subject declared with the given rdf:type,
// in document order.
func (t *tripleSet) subjectsOfType(typeIRI string) []string {
	var out []string
	for _, s := range t.subjects {
		for _, o := range t.objects(s, rdfType) {
			if o.iri && o.value == typeIRI {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// parseTriples reads an N-Triples document. Only the subset the SSBD
// export uses is accepted: IRI subjects and predicates, IRI or plain /
// typed string literal objects, one triple per line.
func parseTriples(r io.Reader) (*tripleSet, error) {
	set := &tripleSet{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		subject, rest, err := readIRI(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: subject: %w", lineNo, err)
		}
		predicate, rest, err := readIRI(rest)
		if err != nil {
			return nil, fmt.Errorf("line %d: predicate: %w", lineNo, err)
		}
		obj, rest, err := readObject(rest)
		if err != nil {
			return nil, fmt.Errorf("line %d: object: %w", lineNo, err)
		}
		if rest = strings.TrimSpace(rest); rest != "." {
			return nil, fmt.Errorf("line %d: expected terminating dot, got %q", lineNo, rest)
		}
		set.add(subject, predicate, obj)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

func readIRI(s string) (string, string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "<") {
		return "", "", fmt.Errorf("expected IRI, got %q", truncate(s))
	}
	end := strings.IndexByte(s, '>')
	if end < 0 {
		return "", "", fmt.Errorf("unterminated IRI")
	}
	return s[1:end], s[end+1:], nil
}

func readObject(s string) (object, string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<") {
		iri, rest, err := readIRI(s)
		return object{value: iri, iri: true}, rest, err
	}
	if !strings.HasPrefix(s, `"`) {
		return object{}, "", fmt.Errorf("expected IRI or literal, got %q", truncate(s))
	}

	// Find the closing unescaped quote.
	end := -1
	for i := 1; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == '"' {
			end = i
			break
		}
	}
	if end < 0 {
		return object{}, "", fmt.Errorf("unterminated literal")
	}

	value, err := unescapeLiteral(s[1:end])
	if err != nil {
		return object{}, "", err
	}

	// Drop any datatype or language tag.
	rest := s[end+1:]
	if strings.HasPrefix(rest, "^^") {
		_, rest, err = readIRI(rest[2:])
		if err != nil {
			return object{}, "", err
		}
	} else if strings.HasPrefix(rest, "@") {
		if i := strings.IndexAny(rest, " \t"); i > 0 {
			rest = rest[i:]
		} else {
			rest = ""
		}
	}
	return object{value: value}, rest, nil
}

func unescapeLiteral(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("dangling escape")
		}
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case '"', '\\':
			b.WriteByte(s[i])
		case 'u', 'U':
			width := 4
			if s[i] == 'U' {
				width = 8
			}
			if i+width >= len(s) {
				return "", fmt.Errorf("truncated unicode escape")
			}
			code, err := strconv.ParseUint(s[i+1:i+1+width], 16, 32)
			if err != nil {
				return "", fmt.Errorf("bad unicode escape: %w", err)
			}
			b.WriteRune(rune(code))
			i += width
		default:
			return "", fmt.Errorf("unknown escape \\%c", s[i])
		}
	}
	return b.String(), nil
}

func truncate(s string) string {
	if len(s) > 20 {
		return s[:20] + "..."
	}
	return s
}
