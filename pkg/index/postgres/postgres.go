// Package postgres implements the index engine on top of PostgreSQL
// full-text search. The studies table keeps the canonical document as
// jsonb next to the columns the query planner needs, so a hit can be
// returned without a second lookup.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gide-search/backend/pkg/index"
	"github.com/gide-search/backend/pkg/logger"
	"github.com/gide-search/backend/pkg/study"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Engine struct {
	pool *pgxpool.Pool
	url  string
}

var _ index.Engine = (*Engine)(nil)

// New wraps an existing connection pool. The url is only used by the
// migration runner, which opens its own connection.
func New(pool *pgxpool.Pool, url string) *Engine {
	return &Engine{pool: pool, url: url}
}

func (e *Engine) Ping(ctx context.Context) error {
	if err := e.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", index.ErrUnavailable, err)
	}
	return nil
}

// EnsureIndex applies pending migrations. Running it against an
// up-to-date schema is a no-op.
func (e *Engine) EnsureIndex(context.Context) error {
	m, err := e.migrator()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (e *Engine) DeleteIndex(context.Context) error {
	m, err := e.migrator()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("revert migrations: %w", err)
	}
	return nil
}

func (e *Engine) migrator() (*migrate.Migrate, error) {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, e.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", index.ErrUnavailable, err)
	}
	return m, nil
}

const upsertStudy = `
INSERT INTO studies (id, source, title, description, license, release_date,
                     keywords, organisms, imaging_methods, authors, document, indexed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
ON CONFLICT (id) DO UPDATE SET
    source          = EXCLUDED.source,
    title           = EXCLUDED.title,
    description     = EXCLUDED.description,
    license         = EXCLUDED.license,
    release_date    = EXCLUDED.release_date,
    keywords        = EXCLUDED.keywords,
    organisms       = EXCLUDED.organisms,
    imaging_methods = EXCLUDED.imaging_methods,
    authors         = EXCLUDED.authors,
    document        = EXCLUDED.document,
    indexed_at      = now()`

func (e *Engine) Index(ctx context.Context, doc study.Study) error {
	args, err := upsertArgs(doc)
	if err != nil {
		return err
	}
	if _, err := e.pool.Exec(ctx, upsertStudy, args...); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// BulkIndex upserts documents in a single batch round trip. A failed
// document is counted and skipped, the rest still go through.
func (e *Engine) BulkIndex(ctx context.Context, docs []study.Study) (int, int, error) {
	batch := &pgx.Batch{}
	failed := 0
	for _, doc := range docs {
		args, err := upsertArgs(doc)
		if err != nil {
			logger.Warn("[Index] Skipping document", "id", doc.ID, "err", err)
			failed++
			continue
		}
		batch.Queue(upsertStudy, args...)
	}
	if batch.Len() == 0 {
		return 0, failed, nil
	}

	results := e.pool.SendBatch(ctx, batch)
	defer results.Close()

	stored := 0
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				logger.Warn("[Index] Upsert failed", "code", pgErr.Code, "err", pgErr.Message)
				failed++
				continue
			}
			return stored, failed, wrapUnavailable(err)
		}
		stored++
	}
	return stored, failed, nil
}

func upsertArgs(doc study.Study) ([]any, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("document has no id")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document %s: %w", doc.ID, err)
	}

	var releaseDate *string
	if !doc.ReleaseDate.IsZero() {
		s := doc.ReleaseDate.String()
		releaseDate = &s
	}
	authors := make([]string, 0, len(doc.Authors))
	for _, a := range doc.Authors {
		authors = append(authors, sanitizeText(a.Name))
	}

	return []any{
		doc.ID, string(doc.Source), sanitizeText(doc.Title), sanitizeText(doc.Description),
		sanitizeText(doc.License), releaseDate, sanitizeTexts(doc.Keywords),
		sanitizeTexts(doc.OrganismNames()), sanitizeTexts(doc.ImagingMethodNames()),
		authors, raw,
	}, nil
}

// Harvested text can carry invalid UTF-8 or NUL bytes, both of which
// Postgres rejects in text columns.
func sanitizeText(value string) string {
	if value == "" {
		return value
	}
	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

func sanitizeTexts(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = sanitizeText(v)
	}
	return out
}

func (e *Engine) Get(ctx context.Context, id string) (*study.Study, error) {
	var raw []byte
	err := e.pool.QueryRow(ctx, `SELECT document FROM studies WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, index.ErrNotFound
	}
	if err != nil {
		return nil, wrapUnavailable(err)
	}

	var doc study.Study
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document %s: %w", id, err)
	}
	return &doc, nil
}

func (e *Engine) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := e.pool.QueryRow(ctx, `SELECT count(*) FROM studies`).Scan(&count); err != nil {
		return 0, wrapUnavailable(err)
	}
	return count, nil
}

func wrapUnavailable(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("postgres: %s: %w", pgErr.Code, err)
	}
	return fmt.Errorf("%w: %v", index.ErrUnavailable, err)
}
