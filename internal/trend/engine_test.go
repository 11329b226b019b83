package trend

import (
	"context"
	"errors"
	"testing"
	"time"

	"recession-pulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

var dayN = time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return dayN.AddDate(0, 0, -n)
}

func num(v float64) *float64 { return &v }

func reading(slug string, value float64, status domain.Status, date time.Time) domain.IndicatorReading {
	return domain.IndicatorReading{
		Slug:         slug,
		Name:         slug,
		NumericValue: num(value),
		Status:       status,
		ReadingDate:  date,
	}
}

func newTestEngine(history []domain.IndicatorReading) (*Engine, *stubHistory) {
	stub := &stubHistory{readings: history}
	return NewEngine(trace.NewNoopTracerProvider().Tracer("test"), stub), stub
}

func TestComputeTrendsSahmWeekOverWeek(t *testing.T) {
	today := reading("sahm", 0.43, domain.StatusWatch, dayN)
	engine, _ := newTestEngine([]domain.IndicatorReading{
		reading("sahm", 0.40, domain.StatusWatch, daysAgo(7)),
		today,
	})

	trends, err := engine.ComputeTrends(context.Background(), []domain.IndicatorReading{today})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr := trends["sahm"]
	if tr.Direction7d != domain.DirectionUp {
		t.Fatalf("expected 7d direction up, got %s", tr.Direction7d)
	}
	if tr.ValueChange7d == nil || *tr.ValueChange7d != 0.03 {
		t.Fatalf("expected 7d change 0.03, got %v", tr.ValueChange7d)
	}
	if tr.StatusChanged7d {
		t.Fatal("expected no 7d status change")
	}
	if tr.PctChange7d == nil || *tr.PctChange7d != 7.5 {
		t.Fatalf("expected 7d pct change 7.5, got %v", tr.PctChange7d)
	}
}

func TestComputeTrendsStatusChangeDayOverDay(t *testing.T) {
	today := reading("x", 1.2, domain.StatusWarning, dayN)
	engine, _ := newTestEngine([]domain.IndicatorReading{
		reading("x", 1.0, domain.StatusWatch, daysAgo(1)),
		today,
	})

	trends, err := engine.ComputeTrends(context.Background(), []domain.IndicatorReading{today})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr := trends["x"]
	if !tr.StatusChanged1d {
		t.Fatal("expected 1d status change")
	}
	if tr.PrevStatus1d == nil || *tr.PrevStatus1d != domain.StatusWatch {
		t.Fatalf("expected previous status watch, got %v", tr.PrevStatus1d)
	}
	if tr.Direction7d != domain.DirectionFlat || tr.ValueChange7d != nil || tr.StatusChanged7d {
		t.Fatalf("expected no 7d signal, got %+v", tr)
	}
}

func TestComputeTrendsNoHistoryIsNoSignal(t *testing.T) {
	today := reading("new", 5, domain.StatusSafe, dayN)
	engine, _ := newTestEngine([]domain.IndicatorReading{today})

	trends, err := engine.ComputeTrends(context.Background(), []domain.IndicatorReading{today})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr, ok := trends["new"]
	if !ok {
		t.Fatal("expected a trend entry for every requested slug")
	}
	if tr.Direction1d != domain.DirectionFlat || tr.Direction7d != domain.DirectionFlat {
		t.Fatalf("expected flat directions, got %+v", tr)
	}
	if tr.ValueChange1d != nil || tr.ValueChange7d != nil || tr.PctChange1d != nil || tr.PctChange7d != nil {
		t.Fatalf("expected nil change fields, got %+v", tr)
	}
	if tr.StatusChanged1d || tr.StatusChanged7d || tr.PrevStatus1d != nil {
		t.Fatalf("expected no status change, got %+v", tr)
	}
}

func TestComputeTrendsQueriesEightDayWindow(t *testing.T) {
	today := reading("a", 1, domain.StatusSafe, dayN)
	engine, stub := newTestEngine(nil)

	if _, err := engine.ComputeTrends(context.Background(), []domain.IndicatorReading{today}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stub.since.Equal(daysAgo(8)) {
		t.Fatalf("expected since=%s, got %s", daysAgo(8), stub.since)
	}
	if len(stub.slugs) != 1 || stub.slugs[0] != "a" {
		t.Fatalf("unexpected slugs: %+v", stub.slugs)
	}
}

func TestComputeTrendsPropagatesStoreErrors(t *testing.T) {
	engine := NewEngine(trace.NewNoopTracerProvider().Tracer("test"), &stubHistory{err: errors.New("db down")})
	_, err := engine.ComputeTrends(context.Background(), []domain.IndicatorReading{reading("a", 1, domain.StatusSafe, dayN)})
	if err == nil {
		t.Fatal("expected store error to propagate")
	}
}

func TestCompareWeekUsesNearestBeforeTarget(t *testing.T) {
	current := reading("yc", 2.0, domain.StatusSafe, dayN)
	history := []domain.IndicatorReading{
		reading("yc", 1.0, domain.StatusWatch, daysAgo(8)),
		reading("yc", 9.0, domain.StatusSafe, daysAgo(6)),
		reading("yc", 1.9, domain.StatusSafe, daysAgo(1)),
	}

	tr := Compare(current, history)
	if tr.PrevStatus7d == nil || *tr.PrevStatus7d != domain.StatusWatch {
		t.Fatalf("expected 7d comparison against day N-8, got %+v", tr.PrevStatus7d)
	}
	if tr.ValueChange7d == nil || *tr.ValueChange7d != 1.0 {
		t.Fatalf("expected 7d change 1.0, got %v", tr.ValueChange7d)
	}
	if tr.ValueChange1d == nil || *tr.ValueChange1d != 0.1 {
		t.Fatalf("expected 1d change 0.1, got %v", tr.ValueChange1d)
	}
}

func TestCompareIgnoresReadingsOutsideWindow(t *testing.T) {
	current := reading("yc", 2.0, domain.StatusSafe, dayN)
	tr := Compare(current, []domain.IndicatorReading{reading("yc", 1.0, domain.StatusSafe, daysAgo(9))})
	if tr.PrevStatus1d != nil || tr.PrevStatus7d != nil {
		t.Fatalf("expected readings older than 8 days to be ignored, got %+v", tr)
	}
}

func TestComparePctChangeNilWhenPreviousZero(t *testing.T) {
	current := reading("z", 0.5, domain.StatusSafe, dayN)
	tr := Compare(current, []domain.IndicatorReading{reading("z", 0, domain.StatusSafe, daysAgo(1))})
	if tr.PctChange1d != nil {
		t.Fatalf("expected nil pct change, got %v", *tr.PctChange1d)
	}
	if tr.ValueChange1d == nil || *tr.ValueChange1d != 0.5 {
		t.Fatalf("expected value change 0.5, got %v", tr.ValueChange1d)
	}
	if tr.Direction1d != domain.DirectionUp {
		t.Fatalf("expected up, got %s", tr.Direction1d)
	}
}

func TestCompareNullValueStillReportsStatusChange(t *testing.T) {
	current := domain.IndicatorReading{Slug: "s", Status: domain.StatusDanger, ReadingDate: dayN}
	tr := Compare(current, []domain.IndicatorReading{reading("s", 3, domain.StatusWarning, daysAgo(1))})
	if tr.Direction1d != domain.DirectionFlat || tr.ValueChange1d != nil || tr.PctChange1d != nil {
		t.Fatalf("expected no numeric change for null value, got %+v", tr)
	}
	if !tr.StatusChanged1d {
		t.Fatal("expected status change to be reported")
	}
}

func TestClassifyEpsilon(t *testing.T) {
	cases := []struct {
		delta, previous float64
		want            domain.Direction
	}{
		{0.00005, 0, domain.DirectionFlat},
		{0.0002, 0, domain.DirectionUp},
		{-0.05, 100, domain.DirectionFlat},
		{-0.2, 100, domain.DirectionDown},
		{0.05, -100, domain.DirectionFlat},
	}
	for _, tc := range cases {
		if got := classify(tc.delta, tc.previous); got != tc.want {
			t.Fatalf("classify(%v, %v) = %s, want %s", tc.delta, tc.previous, got, tc.want)
		}
	}
}

type stubHistory struct {
	readings []domain.IndicatorReading
	err      error
	slugs    []string
	since    time.Time
}

func (s *stubHistory) ListForSlugsSince(ctx context.Context, slugs []string, since time.Time) ([]domain.IndicatorReading, error) {
	s.slugs = append([]string(nil), slugs...)
	s.since = since
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.IndicatorReading(nil), s.readings...), nil
}
