// Package index defines the contract with the external full-text
// engine. The core never talks to a concrete backend directly; it
// builds an engine-neutral Query and hands it to an Engine. Concrete
// engines live in the postgres and memory sub-packages.
package index

import (
	"context"
	"errors"

	"github.com/gide-search/backend/pkg/study"
)

// ErrUnavailable signals that the engine cannot be reached. Callers own
// the retry policy; nothing in this package retries.
var ErrUnavailable = errors.New("search engine unavailable")

// ErrNotFound signals that a requested document id is not indexed.
var ErrNotFound = errors.New("document not found")

// Filter is an exact-match keyword constraint. Values within one
// filter are ORed; separate filters are ANDed.
type Filter struct {
	Field  string
	Values []string
}

// Aggregation requests facet buckets over one field, computed under
// its own filter set. The translator composes these so each facet
// excludes its own dimension's filters.
type Aggregation struct {
	Name     string
	Field    string
	Filters  []Filter
	YearFrom *int
	YearTo   *int
}

// Query is the engine-neutral search request.
type Query struct {
	// Text is a query string in the shared syntax parsed by this
	// package (free terms, quoted phrases, field scopes, AND/OR/NOT,
	// trailing-* prefixes). Empty means match-all.
	Text string

	Filters  []Filter
	YearFrom *int
	YearTo   *int

	Size   int
	Offset int

	Aggregations []Aggregation
	Highlight    []string
}

// Bucket is one facet value with its document count.
type Bucket struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// Hit is one search result, score and highlight fragments as supplied
// by the engine.
type Hit struct {
	ID         string
	Score      float64
	Document   study.Study
	Highlights map[string][]string
}

// Result is a page of hits plus facet buckets keyed by aggregation
// name, bucket order as the engine returned it.
type Result struct {
	Total  int64
	Hits   []Hit
	Facets map[string][]Bucket
}

// Engine is the index backend contract. Indexing is idempotent per
// document id: re-indexing an id overwrites, never duplicates.
type Engine interface {
	Ping(ctx context.Context) error
	EnsureIndex(ctx context.Context) error
	DeleteIndex(ctx context.Context) error

	Index(ctx context.Context, doc study.Study) error
	// BulkIndex returns how many documents were stored and how many
	// failed; it does not stop at the first failure.
	BulkIndex(ctx context.Context, docs []study.Study) (stored int, failed int, err error)

	Get(ctx context.Context, id string) (*study.Study, error)
	Count(ctx context.Context) (int64, error)
	Search(ctx context.Context, q Query) (*Result, error)
}

// Indexed field names addressable in field-scoped query clauses.
const (
	FieldTitle          = "title"
	FieldDescription    = "description"
	FieldKeywords       = "keywords"
	FieldSource         = "source"
	FieldOrganism       = "organism"
	FieldImagingMethod  = "imaging_method"
	FieldAuthor         = "author"
	FieldLicense        = "license"
	FieldReleaseYear    = "year"
)

// IndexedFields is the set of fields a scoped clause may target.
var IndexedFields = map[string]bool{
	FieldTitle:         true,
	FieldDescription:   true,
	FieldKeywords:      true,
	FieldSource:        true,
	FieldOrganism:      true,
	FieldImagingMethod: true,
	FieldAuthor:        true,
	FieldLicense:       true,
	FieldReleaseYear:   true,
}
