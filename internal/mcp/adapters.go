package mcp

import (
	"context"

	"recession-pulse/internal/domain"
)

// BriefingReader exposes the read side of the alert pipeline.
type BriefingReader interface {
	LatestReadings(ctx context.Context) ([]domain.IndicatorReading, error)
	Trends(ctx context.Context) ([]domain.IndicatorWithTrend, error)
	Preview(ctx context.Context, channel domain.Channel) (string, error)
}

// QueueOperator exposes operator actions on the delivery queue.
type QueueOperator interface {
	QueueStats(ctx context.Context) (domain.QueueStats, error)
	DrainQueue(ctx context.Context, limit int) (domain.DispatchReport, error)
}
