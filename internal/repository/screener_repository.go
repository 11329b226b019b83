package repository

import (
	"context"

	"recession-pulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

// ScreenerRepository reads stock_screener_picks, which an external job
// fills. This module never writes to it.
type ScreenerRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewScreenerRepository(pool PgxPool, tracer trace.Tracer) *ScreenerRepository {
	return &ScreenerRepository{pool: pool, tracer: tracer}
}

// ListLatestPicks returns the highest scored picks of the most recent
// screening date.
func (r *ScreenerRepository) ListLatestPicks(ctx context.Context, limit int) ([]domain.StockPick, error) {
	if r.pool == nil {
		return nil, ErrNoDatabase
	}

	_, span := r.tracer.Start(ctx, "screener-repo.list-latest-picks")
	defer span.End()

	if limit <= 0 {
		limit = 5
	}

	rows, err := r.pool.Query(ctx,
		`SELECT ticker, name, signal, score, screened_on
		 FROM stock_screener_picks
		 WHERE screened_on = (SELECT MAX(screened_on) FROM stock_screener_picks)
		 ORDER BY score DESC, ticker ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StockPick
	for rows.Next() {
		var p domain.StockPick
		if err := rows.Scan(&p.Ticker, &p.Name, &p.Signal, &p.Score, &p.ScreenedOn); err != nil {
			return nil, err
		}
		p.ScreenedOn = domain.DateOf(p.ScreenedOn)
		out = append(out, p)
	}
	return out, rows.Err()
}
