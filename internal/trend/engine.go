package trend

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"recession-pulse/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	historyWindowDays = 8
	weekOffsetDays    = 7
	relativeEpsilon   = 0.001
	absoluteEpsilon   = 0.0001
)

var hundred = decimal.NewFromInt(100)

// ReadingHistory is the slice of the reading store the engine needs.
type ReadingHistory interface {
	ListForSlugsSince(ctx context.Context, slugs []string, since time.Time) ([]domain.IndicatorReading, error)
}

type Engine struct {
	tracer  trace.Tracer
	history ReadingHistory
}

type window struct {
	direction     domain.Direction
	valueChange   *float64
	pctChange     *float64
	statusChanged bool
	prevStatus    *domain.Status
}

func NewEngine(tracer trace.Tracer, history ReadingHistory) *Engine {
	return &Engine{tracer: tracer, history: history}
}

// ComputeTrends compares each of today's readings against its own history
// over a 1-day and a 7-day window. todayReadings must hold at most one
// reading per slug.
func (e *Engine) ComputeTrends(ctx context.Context, todayReadings []domain.IndicatorReading) (map[string]domain.IndicatorTrend, error) {
	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "trend-engine.compute-trends")
		span.SetAttributes(attribute.Int("readings", len(todayReadings)))
		defer span.End()
	}

	out := make(map[string]domain.IndicatorTrend, len(todayReadings))
	if len(todayReadings) == 0 {
		return out, nil
	}
	if e.history == nil {
		return nil, fmt.Errorf("trend engine has no reading history")
	}

	slugs := make([]string, 0, len(todayReadings))
	earliest := domain.DateOf(todayReadings[0].ReadingDate)
	for _, r := range todayReadings {
		slugs = append(slugs, r.Slug)
		if d := domain.DateOf(r.ReadingDate); d.Before(earliest) {
			earliest = d
		}
	}

	since := earliest.AddDate(0, 0, -historyWindowDays)
	history, err := e.history.ListForSlugsSince(ctx, slugs, since)
	if err != nil {
		return nil, fmt.Errorf("list reading history: %w", err)
	}
	bySlug := groupBySlug(history)

	for _, current := range todayReadings {
		out[current.Slug] = Compare(current, bySlug[current.Slug])
	}
	return out, nil
}

// Compare builds the trend for current from history, which may be in any
// order and may include current itself.
func Compare(current domain.IndicatorReading, history []domain.IndicatorReading) domain.IndicatorTrend {
	ordered := sortByRecency(history)
	today := domain.DateOf(current.ReadingDate)
	floor := today.AddDate(0, 0, -historyWindowDays)
	weekTarget := today.AddDate(0, 0, -weekOffsetDays)

	var prevDay, prevWeek *domain.IndicatorReading
	for i := range ordered {
		d := domain.DateOf(ordered[i].ReadingDate)
		if d.Before(floor) {
			break
		}
		if prevDay == nil && d.Before(today) {
			prevDay = &ordered[i]
		}
		if prevWeek == nil && !d.After(weekTarget) {
			prevWeek = &ordered[i]
		}
		if prevDay != nil && prevWeek != nil {
			break
		}
	}

	t := domain.NoSignalTrend(current.Slug)
	if w, ok := compareWindow(current, prevDay); ok {
		t.Direction1d = w.direction
		t.ValueChange1d = w.valueChange
		t.PctChange1d = w.pctChange
		t.StatusChanged1d = w.statusChanged
		t.PrevStatus1d = w.prevStatus
	}
	if w, ok := compareWindow(current, prevWeek); ok {
		t.Direction7d = w.direction
		t.ValueChange7d = w.valueChange
		t.PctChange7d = w.pctChange
		t.StatusChanged7d = w.statusChanged
		t.PrevStatus7d = w.prevStatus
	}
	return t
}

func compareWindow(current domain.IndicatorReading, previous *domain.IndicatorReading) (window, bool) {
	if previous == nil {
		return window{}, false
	}

	prevStatus := previous.Status
	w := window{
		direction:     domain.DirectionFlat,
		statusChanged: previous.Status != current.Status,
		prevStatus:    &prevStatus,
	}

	cur, ok := finite(current.NumericValue)
	if !ok {
		return w, true
	}
	prev, ok := finite(previous.NumericValue)
	if !ok {
		return w, true
	}

	delta, pct := change(cur, prev)
	w.valueChange = &delta
	w.pctChange = pct
	w.direction = classify(delta, prev)
	return w, true
}

// change returns current-previous and the percentage of |previous|, computed
// in decimal so that simple inputs produce simple deltas.
func change(current, previous float64) (float64, *float64) {
	c := decimal.NewFromFloat(current)
	p := decimal.NewFromFloat(previous)
	d := c.Sub(p)
	delta := d.InexactFloat64()
	if p.IsZero() {
		return delta, nil
	}
	pct := d.Div(p.Abs()).Mul(hundred).Round(4).InexactFloat64()
	return delta, &pct
}

func classify(delta, previous float64) domain.Direction {
	epsilon := math.Max(math.Abs(previous)*relativeEpsilon, absoluteEpsilon)
	if math.Abs(delta) < epsilon {
		return domain.DirectionFlat
	}
	if delta > 0 {
		return domain.DirectionUp
	}
	return domain.DirectionDown
}

func finite(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}

func groupBySlug(readings []domain.IndicatorReading) map[string][]domain.IndicatorReading {
	out := make(map[string][]domain.IndicatorReading)
	for _, r := range readings {
		out[r.Slug] = append(out[r.Slug], r)
	}
	return out
}

// sortByRecency orders newest reading date first. Same-day rows go by
// descending ID, and rows without a distinguishing ID by reverse input order,
// so the most recently written row leads.
func sortByRecency(in []domain.IndicatorReading) []domain.IndicatorReading {
	idx := make([]int, len(in))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		ra, rb := in[idx[a]], in[idx[b]]
		da := domain.DateOf(ra.ReadingDate)
		db := domain.DateOf(rb.ReadingDate)
		if !da.Equal(db) {
			return da.After(db)
		}
		if ra.ID != rb.ID {
			return ra.ID > rb.ID
		}
		return idx[a] > idx[b]
	})

	out := make([]domain.IndicatorReading, len(in))
	for i, j := range idx {
		out[i] = in[j]
	}
	return out
}
