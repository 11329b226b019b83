// Package briefing renders indicator readings into alert bodies: plain text
// for SMS and Telegram, HTML for email.
package briefing

import (
	"fmt"
	"strings"
	"time"

	"recession-pulse/internal/domain"
)

const DefaultDashboardURL = "https://recessionpulse.com/dashboard"

const (
	TagHighAlert = "HIGH ALERT"
	TagCaution   = "CAUTION"
	TagWatchful  = "WATCHFUL"
	TagAllClear  = "ALL CLEAR"
)

// Options carries everything besides the indicators that shapes a body.
// Table and Screener only affect email.
type Options struct {
	Date         time.Time
	DashboardURL string
	Table        bool
	Screener     []domain.StockPick
}

type buckets struct {
	critical []domain.IndicatorWithTrend
	watching []domain.IndicatorWithTrend
	safe     []domain.IndicatorWithTrend
	changes  []domain.IndicatorWithTrend
}

func partition(items []domain.IndicatorWithTrend) buckets {
	var b buckets
	for _, it := range items {
		switch {
		case it.Status.IsCritical():
			b.critical = append(b.critical, it)
		case it.Status == domain.StatusWatch:
			b.watching = append(b.watching, it)
		case it.Status == domain.StatusSafe:
			b.safe = append(b.safe, it)
		}
		if it.Trend != nil && it.Trend.StatusChanged1d {
			b.changes = append(b.changes, it)
		}
	}
	return b
}

// headerTag picks the tag from the critical count first, then the watch
// count.
func headerTag(critical, watching int) (string, string) {
	switch {
	case critical >= 3:
		return TagHighAlert, "🚨"
	case critical >= 1:
		return TagCaution, "⚠️"
	case watching >= 3:
		return TagWatchful, "👀"
	default:
		return TagAllClear, "✅"
	}
}

func statusEmoji(s domain.Status) string {
	switch s {
	case domain.StatusSafe:
		return "🟢"
	case domain.StatusWatch:
		return "🟡"
	case domain.StatusWarning:
		return "🟠"
	case domain.StatusDanger:
		return "🔴"
	}
	return "⚪"
}

func formatDate(d time.Time) string {
	return domain.DateOf(d).Format("Jan 2, 2006")
}

func dashboardURL(opts Options) string {
	if opts.DashboardURL == "" {
		return DefaultDashboardURL
	}
	return opts.DashboardURL
}

func scoreLine(b buckets) string {
	return fmt.Sprintf("%d safe / %d watch / %d alert", len(b.safe), len(b.watching), len(b.critical))
}

func safeLine(n int) string {
	if n == 1 {
		return "1 indicator safe"
	}
	return fmt.Sprintf("%d indicators safe", n)
}

// oneLine folds every run of whitespace, newlines included, into one space.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func previousStatus(it domain.IndicatorWithTrend) string {
	if it.Trend == nil || it.Trend.PrevStatus1d == nil {
		return "unknown"
	}
	return string(*it.Trend.PrevStatus1d)
}

// FormatAlertBody renders the briefing for channel. Email gets HTML; every
// other channel gets the plain-text form.
func FormatAlertBody(items []domain.IndicatorWithTrend, channel domain.Channel, opts Options) string {
	if channel == domain.ChannelEmail {
		return formatEmail(items, opts)
	}
	return formatText(items, opts)
}

// formatText joins non-empty sections with exactly one blank line. No
// section starts or ends with a newline.
func formatText(items []domain.IndicatorWithTrend, opts Options) string {
	b := partition(items)
	tag, emoji := headerTag(len(b.critical), len(b.watching))

	sections := []string{fmt.Sprintf("%s %s | %s", emoji, tag, formatDate(opts.Date))}

	if len(b.critical) > 0 {
		lines := []string{"ALERTS"}
		for _, it := range b.critical {
			lines = append(lines, fmt.Sprintf("%s %s: %s", statusEmoji(it.Status), oneLine(it.Name), oneLine(it.DisplayValue)))
			if s := oneLine(it.Signal); s != "" {
				lines = append(lines, "  → "+s)
			}
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(b.watching) > 0 {
		lines := []string{"WATCHING"}
		for _, it := range b.watching {
			lines = append(lines, fmt.Sprintf("%s %s: %s", statusEmoji(it.Status), oneLine(it.Name), oneLine(it.DisplayValue)))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(b.safe) > 0 {
		sections = append(sections, safeLine(len(b.safe)))
	}

	if len(b.changes) > 0 {
		lines := []string{"CHANGES"}
		for _, it := range b.changes {
			lines = append(lines, fmt.Sprintf("%s: %s → %s", oneLine(it.Name), previousStatus(it), it.Status))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	sections = append(sections, scoreLine(b))
	sections = append(sections, "Full dashboard: "+dashboardURL(opts))

	return strings.Join(sections, "\n\n")
}

// Subject is the email subject line for a briefing.
func Subject(items []domain.IndicatorWithTrend, date time.Time) string {
	b := partition(items)
	tag, emoji := headerTag(len(b.critical), len(b.watching))
	return fmt.Sprintf("%s Recession Pulse %s: %s", emoji, formatDate(date), tag)
}
