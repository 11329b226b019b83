package domain

import (
	"errors"
	"time"
)

var (
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrMessageNotFound    = errors.New("queued message not found")
	ErrUnsupportedChannel = errors.New("unsupported channel")
)

type Status string

const (
	StatusSafe    Status = "safe"
	StatusWatch   Status = "watch"
	StatusWarning Status = "warning"
	StatusDanger  Status = "danger"
)

// Severity orders statuses so that higher is worse. Unknown statuses rank
// below safe.
func (s Status) Severity() int {
	switch s {
	case StatusSafe:
		return 1
	case StatusWatch:
		return 2
	case StatusWarning:
		return 3
	case StatusDanger:
		return 4
	}
	return 0
}

func (s Status) IsValid() bool {
	return s.Severity() > 0
}

// IsCritical reports whether the status belongs in the ALERTS bucket.
func (s Status) IsCritical() bool {
	return s == StatusWarning || s == StatusDanger
}

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionFlat Direction = "flat"
)

// IndicatorReading is one observation of one indicator on one calendar date.
type IndicatorReading struct {
	ID           int64     `json:"id,omitempty"`
	Slug         string    `json:"slug"`
	Name         string    `json:"name"`
	DisplayValue string    `json:"display_value"`
	NumericValue *float64  `json:"numeric_value"`
	Status       Status    `json:"status"`
	Signal       string    `json:"signal"`
	ReadingDate  time.Time `json:"reading_date"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// IndicatorTrend is derived per cycle and never persisted.
type IndicatorTrend struct {
	Slug            string    `json:"slug"`
	Direction1d     Direction `json:"direction_1d"`
	Direction7d     Direction `json:"direction_7d"`
	ValueChange1d   *float64  `json:"value_change_1d"`
	ValueChange7d   *float64  `json:"value_change_7d"`
	PctChange1d     *float64  `json:"pct_change_1d"`
	PctChange7d     *float64  `json:"pct_change_7d"`
	StatusChanged1d bool      `json:"status_changed_1d"`
	StatusChanged7d bool      `json:"status_changed_7d"`
	PrevStatus1d    *Status   `json:"prev_status_1d"`
	PrevStatus7d    *Status   `json:"prev_status_7d"`
}

// NoSignalTrend is the trend for a slug without any comparable history.
func NoSignalTrend(slug string) IndicatorTrend {
	return IndicatorTrend{
		Slug:        slug,
		Direction1d: DirectionFlat,
		Direction7d: DirectionFlat,
	}
}

// IndicatorWithTrend is the formatter input: a reading plus its optional trend.
type IndicatorWithTrend struct {
	IndicatorReading
	Trend *IndicatorTrend `json:"trend,omitempty"`
}

// StockPick is one row of the pro-tier stock screener.
type StockPick struct {
	Ticker     string    `json:"ticker"`
	Name       string    `json:"name"`
	Signal     string    `json:"signal"`
	Score      float64   `json:"score"`
	ScreenedOn time.Time `json:"screened_on"`
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
