package repository

import (
	"context"
	"testing"
	"time"

	"recession-pulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

func TestHistoryListForUserClampsLimit(t *testing.T) {
	sentAt := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	pool := &stubPool{rowsData: [][]any{
		{int64(1), "m1", "u1", "recession_alert", "email", "a@example.com", "<p>hi</p>", sentAt},
	}}
	repo := NewHistoryRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	got, err := repo.ListForUser(context.Background(), "u1", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].MessageType != domain.MessageRecessionAlert || got[0].Channel != domain.ChannelEmail {
		t.Fatalf("unexpected history: %+v", got)
	}
	if pool.queryArgs[1] != 200 {
		t.Fatalf("expected limit clamped to 200, got %v", pool.queryArgs[1])
	}
}

func TestScreenerListLatestPicks(t *testing.T) {
	day := time.Date(2026, 3, 19, 0, 0, 0, 0, time.UTC)
	pool := &stubPool{rowsData: [][]any{
		{"KO", "Coca-Cola", "defensive value", 0.91, day},
		{"PG", "Procter & Gamble", "low beta", 0.88, day},
	}}
	repo := NewScreenerRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	got, err := repo.ListLatestPicks(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Ticker != "KO" || got[1].Score != 0.88 {
		t.Fatalf("unexpected picks: %+v", got)
	}
	if pool.queryArgs[0] != 5 {
		t.Fatalf("expected default limit 5, got %v", pool.queryArgs[0])
	}
}
