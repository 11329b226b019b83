package repository

import (
	"context"
	"errors"
	"time"

	"recession-pulse/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

// ErrNoDatabase is returned by repositories built without a pool.
var ErrNoDatabase = errors.New("database not configured")

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const readingSchema = `
CREATE TABLE IF NOT EXISTS indicator_readings (
    id            BIGSERIAL PRIMARY KEY,
    slug          TEXT NOT NULL,
    name          TEXT NOT NULL,
    display_value TEXT NOT NULL DEFAULT '',
    numeric_value DOUBLE PRECISION,
    status        TEXT NOT NULL,
    signal        TEXT NOT NULL DEFAULT '',
    reading_date  DATE NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (slug, reading_date)
);
CREATE INDEX IF NOT EXISTS idx_indicator_readings_date ON indicator_readings (reading_date DESC, id DESC);
`

const readingColumns = `id, slug, name, display_value, numeric_value, status, signal, reading_date, created_at`

type ReadingRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewReadingRepository(pool PgxPool, tracer trace.Tracer) *ReadingRepository {
	return &ReadingRepository{pool: pool, tracer: tracer}
}

func (r *ReadingRepository) RunMigrations(ctx context.Context) error {
	if r.pool == nil {
		return ErrNoDatabase
	}

	_, span := r.tracer.Start(ctx, "reading-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, readingSchema)
	return err
}

// UpsertReadings writes one row per (slug, reading_date); a second write for
// the same key replaces the earlier values.
func (r *ReadingRepository) UpsertReadings(ctx context.Context, readings []domain.IndicatorReading) error {
	if r.pool == nil {
		return ErrNoDatabase
	}

	if len(readings) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "reading-repo.upsert-readings")
	defer span.End()

	batch := &pgx.Batch{}
	for _, rd := range readings {
		batch.Queue(
			`INSERT INTO indicator_readings (slug, name, display_value, numeric_value, status, signal, reading_date)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (slug, reading_date) DO UPDATE SET
			     name = EXCLUDED.name,
			     display_value = EXCLUDED.display_value,
			     numeric_value = EXCLUDED.numeric_value,
			     status = EXCLUDED.status,
			     signal = EXCLUDED.signal`,
			rd.Slug, rd.Name, rd.DisplayValue, rd.NumericValue, string(rd.Status), rd.Signal, domain.DateOf(rd.ReadingDate),
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range readings {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListSince returns every reading dated on or after since, newest first.
func (r *ReadingRepository) ListSince(ctx context.Context, since time.Time) ([]domain.IndicatorReading, error) {
	if r.pool == nil {
		return nil, ErrNoDatabase
	}

	_, span := r.tracer.Start(ctx, "reading-repo.list-since")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT `+readingColumns+`
		 FROM indicator_readings
		 WHERE reading_date >= $1
		 ORDER BY reading_date DESC, id DESC`,
		domain.DateOf(since),
	)
	if err != nil {
		return nil, err
	}
	return scanReadings(rows)
}

func (r *ReadingRepository) ListForSlugsSince(ctx context.Context, slugs []string, since time.Time) ([]domain.IndicatorReading, error) {
	if r.pool == nil {
		return nil, ErrNoDatabase
	}

	if len(slugs) == 0 {
		return nil, nil
	}

	_, span := r.tracer.Start(ctx, "reading-repo.list-for-slugs-since")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT `+readingColumns+`
		 FROM indicator_readings
		 WHERE slug = ANY($1) AND reading_date >= $2
		 ORDER BY reading_date DESC, id DESC`,
		slugs, domain.DateOf(since),
	)
	if err != nil {
		return nil, err
	}
	return scanReadings(rows)
}

func scanReadings(rows pgx.Rows) ([]domain.IndicatorReading, error) {
	defer rows.Close()

	var out []domain.IndicatorReading
	for rows.Next() {
		var rd domain.IndicatorReading
		var status string
		if err := rows.Scan(
			&rd.ID,
			&rd.Slug,
			&rd.Name,
			&rd.DisplayValue,
			&rd.NumericValue,
			&status,
			&rd.Signal,
			&rd.ReadingDate,
			&rd.CreatedAt,
		); err != nil {
			return nil, err
		}
		rd.Status = domain.Status(status)
		rd.ReadingDate = domain.DateOf(rd.ReadingDate)
		rd.CreatedAt = rd.CreatedAt.UTC()
		out = append(out, rd)
	}
	return out, rows.Err()
}
