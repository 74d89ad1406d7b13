package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gide-search/backend/pkg/index"
)

// argList collects query arguments and hands out their placeholders.
type argList struct {
	args []any
}

func (a *argList) add(v any) string {
	a.args = append(a.args, v)
	return fmt.Sprintf("$%d", len(a.args))
}

func (e *Engine) Search(ctx context.Context, q index.Query) (*index.Result, error) {
	clauses, err := index.ParseQuery(q.Text)
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}

	// The total is counted separately: a LIMIT/OFFSET page past the end
	// returns no rows, so the count cannot ride on the page itself.
	countSQL, countArgs := countQuery(clauses, q)
	var total int64
	if err := e.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, wrapUnavailable(err)
	}

	args := &argList{}
	where := buildWhere(clauses, q.Filters, q.YearFrom, q.YearTo, args)
	rank := rankExpr(clauses, args)

	selectCols := []string{"id", "document", rank + " AS score"}
	for _, field := range q.Highlight {
		expr := headlineExpr(field, clauses, args)
		if expr == "" {
			continue
		}
		selectCols = append(selectCols, fmt.Sprintf("%s AS hl_%s", expr, field))
	}

	sql := fmt.Sprintf(
		`SELECT %s FROM studies WHERE %s ORDER BY score DESC, id ASC LIMIT %s OFFSET %s`,
		strings.Join(selectCols, ", "), where, args.add(q.Size), args.add(q.Offset))

	rows, err := e.pool.Query(ctx, sql, args.args...)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	defer rows.Close()

	result := &index.Result{Total: total, Facets: map[string][]index.Bucket{}}
	for rows.Next() {
		var (
			hit index.Hit
			raw []byte
		)
		dest := []any{&hit.ID, &raw, &hit.Score}
		highlights := make([]*string, len(selectCols)-3)
		for i := range highlights {
			dest = append(dest, &highlights[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, wrapUnavailable(err)
		}

		if err := json.Unmarshal(raw, &hit.Document); err != nil {
			return nil, fmt.Errorf("unmarshal document %s: %w", hit.ID, err)
		}
		hit.Highlights = collectHighlights(q.Highlight, highlights)
		result.Hits = append(result.Hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapUnavailable(err)
	}

	for _, agg := range q.Aggregations {
		buckets, err := e.aggregate(ctx, agg, clauses)
		if err != nil {
			return nil, err
		}
		result.Facets[agg.Name] = buckets
	}
	return result, nil
}

// countQuery renders the match count for the query's predicate alone,
// with no pagination arguments attached.
func countQuery(clauses []index.Clause, q index.Query) (string, []any) {
	args := &argList{}
	where := buildWhere(clauses, q.Filters, q.YearFrom, q.YearTo, args)
	return "SELECT count(*) FROM studies WHERE " + where, args.args
}

func collectHighlights(fields []string, values []*string) map[string][]string {
	if len(values) == 0 {
		return nil
	}
	out := map[string][]string{}
	i := 0
	for _, field := range fields {
		if !highlightable(field) {
			continue
		}
		if i < len(values) && values[i] != nil && strings.Contains(*values[i], "<em>") {
			out[field] = append(out[field], *values[i])
		}
		i++
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func highlightable(field string) bool {
	return field == index.FieldTitle || field == index.FieldDescription
}

// buildWhere renders clauses and structured filters into one predicate.
// Filter values within one dimension are ORed, dimensions are ANDed.
func buildWhere(clauses []index.Clause, filters []index.Filter, yearFrom, yearTo *int, args *argList) string {
	var musts, mustNots, shoulds []string
	for _, c := range clauses {
		pred := clausePredicate(c, args)
		if pred == "" {
			continue
		}
		switch c.Occur {
		case index.Must:
			musts = append(musts, pred)
		case index.MustNot:
			mustNots = append(mustNots, pred)
		case index.Should:
			shoulds = append(shoulds, pred)
		}
	}

	conds := musts
	for _, pred := range mustNots {
		conds = append(conds, "NOT "+pred)
	}
	if len(shoulds) > 0 {
		conds = append(conds, "("+strings.Join(shoulds, " OR ")+")")
	}

	for _, f := range filters {
		if pred := filterPredicate(f, args); pred != "" {
			conds = append(conds, pred)
		}
	}
	if yearFrom != nil {
		conds = append(conds, fmt.Sprintf("release_year >= %s", args.add(*yearFrom)))
	}
	if yearTo != nil {
		conds = append(conds, fmt.Sprintf("release_year <= %s", args.add(*yearTo)))
	}

	if len(conds) == 0 {
		return "TRUE"
	}
	return strings.Join(conds, " AND ")
}

func clausePredicate(c index.Clause, args *argList) string {
	switch c.Field {
	case "", index.FieldTitle, index.FieldDescription, index.FieldKeywords:
		lexeme := tsLexeme(c)
		if lexeme == "" {
			return ""
		}
		return fmt.Sprintf("fts @@ to_tsquery('english', %s)", args.add(lexeme))
	case index.FieldSource:
		return scalarPredicate("source", c, args)
	case index.FieldLicense:
		return scalarPredicate("license", c, args)
	case index.FieldReleaseYear:
		return fmt.Sprintf("release_year::text = %s", args.add(c.Term))
	case index.FieldOrganism:
		return arrayPredicate("organisms", c, args)
	case index.FieldImagingMethod:
		return arrayPredicate("imaging_methods", c, args)
	case index.FieldAuthor:
		return arrayPredicate("authors", c, args)
	}
	return ""
}

func scalarPredicate(column string, c index.Clause, args *argList) string {
	if c.Prefix {
		return fmt.Sprintf("%s ILIKE %s || '%%'", column, args.add(c.Term))
	}
	return fmt.Sprintf("lower(%s) = lower(%s)", column, args.add(c.Term))
}

func arrayPredicate(column string, c index.Clause, args *argList) string {
	if c.Prefix {
		return fmt.Sprintf(
			"EXISTS (SELECT 1 FROM unnest(%s) AS v WHERE v ILIKE %s || '%%')",
			column, args.add(c.Term))
	}
	return fmt.Sprintf(
		"EXISTS (SELECT 1 FROM unnest(%s) AS v WHERE lower(v) = lower(%s))",
		column, args.add(c.Term))
}

// tsLexeme renders one clause as a tsquery expression. Scoped text
// clauses restrict matches to the column's weight label, which is how
// the generated fts column separates title, description and keywords.
func tsLexeme(c index.Clause) string {
	words := sanitizeWords(c.Term)
	if len(words) == 0 {
		return ""
	}

	suffix := ""
	if c.Prefix {
		suffix = ":*"
	}
	switch c.Field {
	case index.FieldTitle:
		suffix += weightSuffix(suffix, "A")
	case index.FieldDescription:
		suffix += weightSuffix(suffix, "B")
	case index.FieldKeywords:
		suffix += weightSuffix(suffix, "C")
	}

	if c.Phrase && len(words) > 1 {
		for i := range words {
			words[i] += suffix
		}
		return strings.Join(words, " <-> ")
	}
	return words[0] + suffix
}

func weightSuffix(existing, weight string) string {
	if existing == "" {
		return ":" + weight
	}
	return weight
}

// sanitizeWords strips tsquery syntax characters so user input can
// never inject operators.
func sanitizeWords(term string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(term) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r > 127:
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

// rankExpr scores hits against every positive text clause. Queries with
// no text component fall back to a constant score, leaving the id as
// the tiebreaker.
func rankExpr(clauses []index.Clause, args *argList) string {
	var lexemes []string
	for _, c := range clauses {
		if c.Occur == index.MustNot {
			continue
		}
		switch c.Field {
		case "", index.FieldTitle, index.FieldDescription, index.FieldKeywords:
			if lexeme := tsLexeme(c); lexeme != "" {
				lexemes = append(lexemes, lexeme)
			}
		}
	}
	if len(lexemes) == 0 {
		return "0::float8"
	}
	return fmt.Sprintf("ts_rank(fts, to_tsquery('english', %s))::float8",
		args.add(strings.Join(lexemes, " | ")))
}

func headlineExpr(field string, clauses []index.Clause, args *argList) string {
	if !highlightable(field) {
		return ""
	}
	var lexemes []string
	for _, c := range clauses {
		if c.Occur == index.MustNot {
			continue
		}
		switch c.Field {
		case "", index.FieldTitle, index.FieldDescription, index.FieldKeywords:
			if lexeme := tsLexeme(index.Clause{Term: c.Term, Phrase: c.Phrase, Prefix: c.Prefix}); lexeme != "" {
				lexemes = append(lexemes, lexeme)
			}
		}
	}
	if len(lexemes) == 0 {
		return ""
	}
	return fmt.Sprintf(
		"ts_headline('english', %s, to_tsquery('english', %s), 'StartSel=<em>, StopSel=</em>')",
		field, args.add(strings.Join(lexemes, " | ")))
}

// aggregate runs one facet count. The aggregation carries its own
// filter set so a dimension never narrows its own buckets.
func (e *Engine) aggregate(ctx context.Context, agg index.Aggregation, clauses []index.Clause) ([]index.Bucket, error) {
	args := &argList{}
	where := buildWhere(clauses, agg.Filters, agg.YearFrom, agg.YearTo, args)

	var sql string
	switch agg.Field {
	case index.FieldSource:
		sql = fmt.Sprintf(
			`SELECT source, count(*) FROM studies WHERE %s GROUP BY source ORDER BY count(*) DESC, source ASC`, where)
	case index.FieldLicense:
		sql = fmt.Sprintf(
			`SELECT license, count(*) FROM studies WHERE %s AND license <> '' GROUP BY license ORDER BY count(*) DESC, license ASC`, where)
	case index.FieldOrganism:
		sql = fmt.Sprintf(
			`SELECT v, count(*) FROM studies, unnest(organisms) AS v WHERE %s GROUP BY v ORDER BY count(*) DESC, v ASC`, where)
	case index.FieldImagingMethod:
		sql = fmt.Sprintf(
			`SELECT v, count(*) FROM studies, unnest(imaging_methods) AS v WHERE %s GROUP BY v ORDER BY count(*) DESC, v ASC`, where)
	case index.FieldReleaseYear:
		sql = fmt.Sprintf(
			`SELECT release_year::text, count(*) FROM studies WHERE %s AND release_year IS NOT NULL GROUP BY release_year ORDER BY release_year ASC`, where)
	default:
		return nil, fmt.Errorf("unsupported aggregation field %q", agg.Field)
	}

	rows, err := e.pool.Query(ctx, sql, args.args...)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	defer rows.Close()

	var buckets []index.Bucket
	for rows.Next() {
		var b index.Bucket
		if err := rows.Scan(&b.Value, &b.Count); err != nil {
			return nil, wrapUnavailable(err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapUnavailable(err)
	}
	return buckets, nil
}

// filterPredicate maps one structured filter dimension onto its column.
func filterPredicate(f index.Filter, args *argList) string {
	if len(f.Values) == 0 {
		return ""
	}
	switch f.Field {
	case index.FieldSource:
		return fmt.Sprintf("source = ANY(%s)", args.add(f.Values))
	case index.FieldLicense:
		return fmt.Sprintf("license = ANY(%s)", args.add(f.Values))
	case index.FieldOrganism:
		return fmt.Sprintf("organisms && %s", args.add(f.Values))
	case index.FieldImagingMethod:
		return fmt.Sprintf("imaging_methods && %s", args.add(f.Values))
	}
	return ""
}
