package index

import (
	"fmt"
	"strings"
	"unicode"
)

// Occur says how a clause participates in matching.
type Occur int

const (
	// Must clauses all have to match.
	Must Occur = iota
	// Should clauses are alternatives; at least one has to match when
	// any are present.
	Should
	// MustNot clauses exclude documents.
	MustNot
)

// Clause is one unit of a parsed query string.
type Clause struct {
	Occur  Occur
	Field  string // empty for unscoped clauses
	Term   string
	Phrase bool // quoted phrase, match words in order
	Prefix bool // trailing-* wildcard, match by prefix
}

// ParseQuery tokenizes a query string in the engine syntax: bare terms,
// "quoted phrases", field:scoped terms, AND / OR / NOT operators and
// trailing-* prefix wildcards. Adjacent terms combine as AND; a leading
// + marks a term required (the default); OR turns both neighbours into
// alternatives; NOT (or a leading -) excludes the next term. The parser
// is deliberately flat: grouping parentheses are not part of the
// accepted syntax.
func ParseQuery(s string) ([]Clause, error) {
	tokens, err := tokenize(s)
	if err != nil {
		return nil, err
	}

	var clauses []Clause
	pendingNot := false
	pendingOr := false

	flip := func(c Clause) Clause {
		if pendingNot {
			c.Occur = MustNot
			pendingNot = false
		} else if pendingOr {
			c.Occur = Should
			// OR also demotes the previous clause to an alternative.
			if n := len(clauses); n > 0 && clauses[n-1].Occur == Must {
				clauses[n-1].Occur = Should
			}
			pendingOr = false
		}
		return c
	}

	for _, tok := range tokens {
		switch tok {
		case "AND":
			continue
		case "OR":
			pendingOr = true
			continue
		case "NOT":
			pendingNot = true
			continue
		}

		clause := Clause{Occur: Must}

		// Leading + marks a required term; Must is already the default,
		// so the marker is only stripped.
		if strings.HasPrefix(tok, "+") && len(tok) > 1 {
			tok = tok[1:]
		} else if strings.HasPrefix(tok, "-") && len(tok) > 1 {
			clause.Occur = MustNot
			tok = tok[1:]
		}

		// field:term or field:"phrase"
		if idx := strings.IndexByte(tok, ':'); idx > 0 && !strings.HasPrefix(tok, `"`) {
			clause.Field = tok[:idx]
			tok = tok[idx+1:]
		}

		if strings.HasPrefix(tok, `"`) && strings.HasSuffix(tok, `"`) && len(tok) >= 2 {
			clause.Phrase = true
			tok = tok[1 : len(tok)-1]
		} else if strings.HasSuffix(tok, "*") && len(tok) > 1 {
			clause.Prefix = true
			tok = tok[:len(tok)-1]
		}

		if tok == "" {
			continue
		}
		clause.Term = tok
		clauses = append(clauses, flip(clause))
	}

	if pendingNot || pendingOr {
		return nil, fmt.Errorf("query ends with a dangling operator")
	}
	return clauses, nil
}

// ScopedFields returns the distinct field names used by scoped clauses,
// in first-use order.
func ScopedFields(clauses []Clause) []string {
	var out []string
	seen := map[string]bool{}
	for _, c := range clauses {
		if c.Field != "" && !seen[c.Field] {
			seen[c.Field] = true
			out = append(out, c.Field)
		}
	}
	return out
}

// tokenize splits on whitespace while keeping quoted phrases (and
// field:"quoted phrase" forms) together.
func tokenize(s string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	inQuotes := false

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			current.WriteRune(r)
		case unicode.IsSpace(r) && !inQuotes:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("unterminated phrase quote")
	}
	flush()
	return tokens, nil
}
