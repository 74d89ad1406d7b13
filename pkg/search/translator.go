// Package search translates federated search requests into engine
// queries and engine results back into the federation's response shape.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gide-search/backend/pkg/index"
	"github.com/gide-search/backend/pkg/study"
)

const (
	DefaultSize = 20
	MaxSize     = 100
)

// FacetDimensions are the aggregations computed for every search, in
// response order.
var FacetDimensions = []string{
	index.FieldSource,
	index.FieldOrganism,
	index.FieldImagingMethod,
	index.FieldReleaseYear,
}

// Request carries the query parameters of a federated search. Tags
// match the HTTP surface so echo can bind it directly.
type Request struct {
	Query          string   `query:"q"`
	Sources        []string `query:"source"`
	Organisms      []string `query:"organism"`
	ImagingMethods []string `query:"imaging_method"`
	YearFrom       *int     `query:"year_from"`
	YearTo         *int     `query:"year_to"`
	Size           int      `query:"size"`
	Offset         int      `query:"offset"`
}

// Hit is one search result. Score and highlights come from the engine
// unmodified.
type Hit struct {
	ID             string              `json:"id"`
	Score          float64             `json:"score"`
	Source         study.Source        `json:"source"`
	SourceURL      string              `json:"source_url,omitempty"`
	Title          string              `json:"title"`
	Description    string              `json:"description,omitempty"`
	Organisms      []string            `json:"organisms,omitempty"`
	ImagingMethods []string            `json:"imaging_methods,omitempty"`
	ReleaseDate    study.Date          `json:"release_date,omitzero"`
	FileCount      *int64              `json:"file_count,omitempty"`
	TotalSizeBytes *int64              `json:"total_size_bytes,omitempty"`
	Highlights     map[string][]string `json:"highlights,omitempty"`
}

type Response struct {
	Total  int64                     `json:"total"`
	Hits   []Hit                     `json:"hits"`
	Facets map[string][]index.Bucket `json:"facets"`
}

// BadRequestError marks a client-caused failure, as opposed to the
// engine being unreachable.
type BadRequestError struct {
	Reason string
}

func (e *BadRequestError) Error() string {
	return e.Reason
}

// Translate validates a request and renders it as an engine query. The
// size is clamped to [1, MaxSize] rather than rejected; a negative
// offset and an unknown field scope are client errors.
func Translate(req Request) (*index.Query, error) {
	if req.Offset < 0 {
		return nil, &BadRequestError{Reason: "offset must not be negative"}
	}
	if req.YearFrom != nil && req.YearTo != nil && *req.YearFrom > *req.YearTo {
		return nil, &BadRequestError{Reason: "year_from must not exceed year_to"}
	}

	clauses, err := index.ParseQuery(req.Query)
	if err != nil {
		return nil, &BadRequestError{Reason: fmt.Sprintf("invalid query string: %v", err)}
	}
	for _, field := range index.ScopedFields(clauses) {
		if !index.IndexedFields[field] {
			return nil, &BadRequestError{Reason: fmt.Sprintf("unknown field scope %q", field)}
		}
	}

	size := req.Size
	switch {
	case size <= 0:
		size = DefaultSize
	case size > MaxSize:
		size = MaxSize
	}

	filters := buildFilters(req)
	q := &index.Query{
		Text:      req.Query,
		Filters:   filters,
		YearFrom:  req.YearFrom,
		YearTo:    req.YearTo,
		Size:      size,
		Offset:    req.Offset,
		Highlight: []string{index.FieldTitle, index.FieldDescription},
	}
	for _, dim := range FacetDimensions {
		q.Aggregations = append(q.Aggregations, aggregation(dim, filters, req))
	}
	return q, nil
}

func buildFilters(req Request) []index.Filter {
	var filters []index.Filter
	if values := clean(req.Sources); len(values) > 0 {
		filters = append(filters, index.Filter{Field: index.FieldSource, Values: values})
	}
	if values := clean(req.Organisms); len(values) > 0 {
		filters = append(filters, index.Filter{Field: index.FieldOrganism, Values: values})
	}
	if values := clean(req.ImagingMethods); len(values) > 0 {
		filters = append(filters, index.Filter{Field: index.FieldImagingMethod, Values: values})
	}
	return filters
}

// aggregation builds one facet request with the dimension's own
// constraints removed, so a facet still offers values beyond the
// current selection. Every other active filter stays applied.
func aggregation(dim string, filters []index.Filter, req Request) index.Aggregation {
	agg := index.Aggregation{Name: dim, Field: dim}
	for _, f := range filters {
		if f.Field != dim {
			agg.Filters = append(agg.Filters, f)
		}
	}
	if dim != index.FieldReleaseYear {
		agg.YearFrom = req.YearFrom
		agg.YearTo = req.YearTo
	}
	return agg
}

func clean(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Search runs a request against the engine and reshapes the result.
func Search(ctx context.Context, engine index.Engine, req Request) (*Response, error) {
	q, err := Translate(req)
	if err != nil {
		return nil, err
	}

	result, err := engine.Search(ctx, *q)
	if err != nil {
		if errors.Is(err, index.ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("search: %w", err)
	}

	resp := &Response{
		Total:  result.Total,
		Hits:   make([]Hit, 0, len(result.Hits)),
		Facets: map[string][]index.Bucket{},
	}
	for _, hit := range result.Hits {
		resp.Hits = append(resp.Hits, Hit{
			ID:             hit.ID,
			Score:          hit.Score,
			Source:         hit.Document.Source,
			SourceURL:      hit.Document.SourceURL,
			Title:          hit.Document.Title,
			Description:    hit.Document.Description,
			Organisms:      hit.Document.OrganismNames(),
			ImagingMethods: hit.Document.ImagingMethodNames(),
			ReleaseDate:    hit.Document.ReleaseDate,
			FileCount:      hit.Document.FileCount,
			TotalSizeBytes: hit.Document.TotalSizeBytes,
			Highlights:     hit.Highlights,
		})
	}
	for _, dim := range FacetDimensions {
		resp.Facets[dim] = result.Facets[dim]
	}
	return resp, nil
}

// Get looks up one canonical aggregate by id.
func Get(ctx context.Context, engine index.Engine, id string) (*study.Study, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &BadRequestError{Reason: "id must not be empty"}
	}
	return engine.Get(ctx, id)
}
