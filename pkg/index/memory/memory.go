// Package memory is an in-process index engine with the same observable
// semantics as the Postgres engine. It backs tests and the CLI dry-run
// path, where spinning up a database would be noise.
package memory

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gide-search/backend/pkg/index"
	"github.com/gide-search/backend/pkg/study"
)

// Engine stores documents in a map keyed by id. Indexing the same id
// twice overwrites, matching the idempotency contract.
type Engine struct {
	mu    sync.RWMutex
	docs  map[string]study.Study
	order []string
}

var _ index.Engine = (*Engine)(nil)

// New returns an empty engine.
func New() *Engine {
	return &Engine{docs: map[string]study.Study{}}
}

func (e *Engine) Ping(context.Context) error        { return nil }
func (e *Engine) EnsureIndex(context.Context) error { return nil }

func (e *Engine) DeleteIndex(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docs = map[string]study.Study{}
	e.order = nil
	return nil
}

func (e *Engine) Index(_ context.Context, doc study.Study) error {
	if doc.ID == "" {
		return fmt.Errorf("document has no id")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.docs[doc.ID]; !exists {
		e.order = append(e.order, doc.ID)
	}
	e.docs[doc.ID] = doc
	return nil
}

func (e *Engine) BulkIndex(ctx context.Context, docs []study.Study) (int, int, error) {
	stored, failed := 0, 0
	for _, doc := range docs {
		if err := e.Index(ctx, doc); err != nil {
			failed++
			continue
		}
		stored++
	}
	return stored, failed, nil
}

func (e *Engine) Get(_ context.Context, id string) (*study.Study, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	doc, ok := e.docs[id]
	if !ok {
		return nil, index.ErrNotFound
	}
	return &doc, nil
}

func (e *Engine) Count(context.Context) (int64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return int64(len(e.docs)), nil
}

func (e *Engine) Search(_ context.Context, q index.Query) (*index.Result, error) {
	clauses, err := index.ParseQuery(q.Text)
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	type scored struct {
		id    string
		score float64
	}
	var matched []scored
	for _, id := range e.order {
		doc := e.docs[id]
		if !matchFilters(&doc, q.Filters, q.YearFrom, q.YearTo) {
			continue
		}
		score, ok := matchClauses(&doc, clauses)
		if !ok {
			continue
		}
		matched = append(matched, scored{id: id, score: score})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].score != matched[j].score {
			return matched[i].score > matched[j].score
		}
		return matched[i].id < matched[j].id
	})

	result := &index.Result{
		Total:  int64(len(matched)),
		Facets: map[string][]index.Bucket{},
	}

	// Pagination never errors past the end: the page is just empty.
	start := q.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.Size
	if end > len(matched) {
		end = len(matched)
	}
	for _, m := range matched[start:end] {
		doc := e.docs[m.id]
		result.Hits = append(result.Hits, index.Hit{
			ID:         m.id,
			Score:      m.score,
			Document:   doc,
			Highlights: highlight(&doc, clauses, q.Highlight),
		})
	}

	for _, agg := range q.Aggregations {
		result.Facets[agg.Name] = e.aggregate(agg, clauses)
	}
	return result, nil
}

// aggregate counts facet buckets under the aggregation's own filter
// set, which the translator has already stripped of the dimension's own
// filters.
func (e *Engine) aggregate(agg index.Aggregation, clauses []index.Clause) []index.Bucket {
	counts := map[string]int64{}
	for _, id := range e.order {
		doc := e.docs[id]
		if !matchFilters(&doc, agg.Filters, agg.YearFrom, agg.YearTo) {
			continue
		}
		if _, ok := matchClauses(&doc, clauses); !ok {
			continue
		}
		for _, v := range facetValues(&doc, agg.Field) {
			counts[v]++
		}
	}

	buckets := make([]index.Bucket, 0, len(counts))
	for value, count := range counts {
		buckets = append(buckets, index.Bucket{Value: value, Count: count})
	}
	if agg.Field == index.FieldReleaseYear {
		sort.Slice(buckets, func(i, j int) bool { return buckets[i].Value < buckets[j].Value })
	} else {
		sort.Slice(buckets, func(i, j int) bool {
			if buckets[i].Count != buckets[j].Count {
				return buckets[i].Count > buckets[j].Count
			}
			return buckets[i].Value < buckets[j].Value
		})
	}
	return buckets
}

func facetValues(doc *study.Study, field string) []string {
	switch field {
	case index.FieldSource:
		return []string{string(doc.Source)}
	case index.FieldOrganism:
		return doc.OrganismNames()
	case index.FieldImagingMethod:
		return doc.ImagingMethodNames()
	case index.FieldLicense:
		return []string{doc.License}
	case index.FieldReleaseYear:
		if doc.ReleaseDate.IsZero() {
			return nil
		}
		return []string{strconv.Itoa(doc.ReleaseDate.Year)}
	}
	return nil
}

func matchFilters(doc *study.Study, filters []index.Filter, yearFrom, yearTo *int) bool {
	for _, f := range filters {
		values := facetValues(doc, f.Field)
		if !anyOverlap(values, f.Values) {
			return false
		}
	}
	if yearFrom != nil || yearTo != nil {
		if doc.ReleaseDate.IsZero() {
			return false
		}
		year := doc.ReleaseDate.Year
		if yearFrom != nil && year < *yearFrom {
			return false
		}
		if yearTo != nil && year > *yearTo {
			return false
		}
	}
	return true
}

func anyOverlap(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

// matchClauses evaluates a parsed query against one document and
// returns a crude term-frequency score. All Must clauses and no MustNot
// clause have to match; when Should clauses exist at least one must.
func matchClauses(doc *study.Study, clauses []index.Clause) (float64, bool) {
	if len(clauses) == 0 {
		return 0, true
	}

	score := 0.0
	shouldSeen := false
	shouldMatched := false

	for _, c := range clauses {
		hits := clauseHits(doc, c)
		switch c.Occur {
		case index.Must:
			if hits == 0 {
				return 0, false
			}
			score += float64(hits)
		case index.MustNot:
			if hits > 0 {
				return 0, false
			}
		case index.Should:
			shouldSeen = true
			if hits > 0 {
				shouldMatched = true
				score += float64(hits)
			}
		}
	}
	if shouldSeen && !shouldMatched {
		return 0, false
	}
	return score, true
}

func clauseHits(doc *study.Study, c index.Clause) int {
	fields := searchableText(doc, c.Field)
	hits := 0
	for _, text := range fields {
		hits += countMatches(text, c)
	}
	return hits
}

// searchableText returns the text a clause is evaluated against. An
// unscoped clause searches title, description and keywords.
func searchableText(doc *study.Study, field string) []string {
	switch field {
	case "":
		return append([]string{doc.Title, doc.Description}, doc.Keywords...)
	case index.FieldTitle:
		return []string{doc.Title}
	case index.FieldDescription:
		return []string{doc.Description}
	case index.FieldKeywords:
		return doc.Keywords
	case index.FieldSource:
		return []string{string(doc.Source)}
	case index.FieldLicense:
		return []string{doc.License}
	case index.FieldOrganism:
		return doc.OrganismNames()
	case index.FieldImagingMethod:
		return doc.ImagingMethodNames()
	case index.FieldAuthor:
		var names []string
		for _, a := range doc.Authors {
			names = append(names, a.Name)
		}
		return names
	case index.FieldReleaseYear:
		if doc.ReleaseDate.IsZero() {
			return nil
		}
		return []string{strconv.Itoa(doc.ReleaseDate.Year)}
	}
	return nil
}

func countMatches(text string, c index.Clause) int {
	if text == "" || c.Term == "" {
		return 0
	}
	haystack := strings.ToLower(text)
	needle := strings.ToLower(c.Term)

	switch {
	case c.Phrase:
		return strings.Count(haystack, needle)
	case c.Prefix:
		count := 0
		for _, word := range splitWords(haystack) {
			if strings.HasPrefix(word, needle) {
				count++
			}
		}
		return count
	default:
		count := 0
		for _, word := range splitWords(haystack) {
			if word == needle {
				count++
			}
		}
		return count
	}
}

var wordSplitter = regexp.MustCompile(`[^\pL\pN]+`)

func splitWords(s string) []string {
	return wordSplitter.Split(s, -1)
}

// highlight wraps matched terms in <em> markers for the requested
// fields, mirroring what ts_headline produces in the Postgres engine.
func highlight(doc *study.Study, clauses []index.Clause, fields []string) map[string][]string {
	if len(clauses) == 0 || len(fields) == 0 {
		return nil
	}
	out := map[string][]string{}
	for _, field := range fields {
		for _, text := range searchableText(doc, field) {
			fragment, matched := highlightText(text, clauses)
			if matched {
				out[field] = append(out[field], fragment)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func highlightText(text string, clauses []index.Clause) (string, bool) {
	matched := false
	for _, c := range clauses {
		if c.Occur == index.MustNot || c.Term == "" {
			continue
		}
		pattern, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(c.Term) + `[\pL\pN]*`)
		if err != nil {
			continue
		}
		if pattern.MatchString(text) {
			matched = true
			text = pattern.ReplaceAllString(text, "<em>$0</em>")
		}
	}
	return text, matched
}
