package briefing

import (
	"bytes"
	"fmt"
	"html/template"

	"recession-pulse/internal/domain"
)

var emailTemplate = template.Must(template.New("briefing").Parse(`<div style="font-family:Arial,Helvetica,sans-serif;max-width:600px;margin:0 auto;padding:24px;background:#0f172a;color:#e2e8f0;border-radius:12px">
<h1 style="font-size:22px;margin:0 0 4px">{{.Emoji}} {{.Tag}}</h1>
<p style="margin:0 0 20px;color:#94a3b8">{{.Date}}</p>
{{- if .Critical}}
<h2 style="font-size:16px;color:#f87171;margin:16px 0 8px">ALERTS</h2>
{{- range .Critical}}
<p style="margin:0 0 8px">{{.Emoji}} <strong>{{.Name}}</strong>: {{.Value}}{{if .Signal}}<br><span style="color:#cbd5e1">→ {{.Signal}}</span>{{end}}</p>
{{- end}}
{{- end}}
{{- if .Watching}}
<h2 style="font-size:16px;color:#facc15;margin:16px 0 8px">WATCHING</h2>
{{- range .Watching}}
<p style="margin:0 0 8px">{{.Emoji}} <strong>{{.Name}}</strong>: {{.Value}}</p>
{{- end}}
{{- end}}
{{- if .SafeLine}}
<p style="margin:16px 0;color:#4ade80">{{.SafeLine}}</p>
{{- end}}
{{- if .Table}}
<table style="width:100%;border-collapse:collapse;margin:16px 0;font-size:14px">
<tr><th style="text-align:left;padding:6px;border-bottom:1px solid #334155">Indicator</th><th style="text-align:left;padding:6px;border-bottom:1px solid #334155">Value</th><th style="text-align:left;padding:6px;border-bottom:1px solid #334155">Status</th><th style="text-align:left;padding:6px;border-bottom:1px solid #334155">7d</th></tr>
{{- range .Table}}
<tr><td style="padding:6px">{{.Name}}</td><td style="padding:6px">{{.Value}}</td><td style="padding:6px">{{.Emoji}} {{.Status}}</td><td style="padding:6px">{{.Week}}</td></tr>
{{- end}}
</table>
{{- end}}
{{- if .Changes}}
<h2 style="font-size:16px;color:#38bdf8;margin:16px 0 8px">CHANGES</h2>
{{- range .Changes}}
<p style="margin:0 0 8px">{{.Name}}: {{.From}} → {{.To}}</p>
{{- end}}
{{- end}}
<p style="margin:20px 0;font-weight:bold">{{.Score}}</p>
{{- if .Screener}}
<h2 style="font-size:16px;color:#a78bfa;margin:16px 0 8px">STOCK SCREENER</h2>
<table style="width:100%;border-collapse:collapse;font-size:14px">
{{- range .Screener}}
<tr><td style="padding:6px"><strong>{{.Ticker}}</strong></td><td style="padding:6px">{{.Name}}</td><td style="padding:6px">{{.Signal}}</td></tr>
{{- end}}
</table>
{{- end}}
<p style="margin:24px 0 0"><a href="{{.DashboardURL}}" style="color:#38bdf8">Open your full dashboard</a></p>
</div>`))

type emailLine struct {
	Emoji  string
	Name   string
	Value  string
	Signal string
	Status string
	Week   string
}

type emailChange struct {
	Name string
	From string
	To   string
}

type emailView struct {
	Emoji        string
	Tag          string
	Date         string
	Critical     []emailLine
	Watching     []emailLine
	SafeLine     string
	Table        []emailLine
	Changes      []emailChange
	Score        string
	Screener     []domain.StockPick
	DashboardURL string
}

func formatEmail(items []domain.IndicatorWithTrend, opts Options) string {
	b := partition(items)
	tag, emoji := headerTag(len(b.critical), len(b.watching))

	view := emailView{
		Emoji:        emoji,
		Tag:          tag,
		Date:         formatDate(opts.Date),
		Score:        scoreLine(b),
		Screener:     opts.Screener,
		DashboardURL: dashboardURL(opts),
	}
	for _, it := range b.critical {
		view.Critical = append(view.Critical, lineFor(it))
	}
	for _, it := range b.watching {
		view.Watching = append(view.Watching, lineFor(it))
	}
	if len(b.safe) > 0 {
		view.SafeLine = safeLine(len(b.safe))
	}
	if opts.Table {
		for _, it := range items {
			view.Table = append(view.Table, lineFor(it))
		}
	}
	for _, it := range b.changes {
		view.Changes = append(view.Changes, emailChange{Name: oneLine(it.Name), From: previousStatus(it), To: string(it.Status)})
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, view); err != nil {
		return "<pre>" + template.HTMLEscapeString(formatText(items, opts)) + "</pre>"
	}
	return buf.String()
}

func lineFor(it domain.IndicatorWithTrend) emailLine {
	return emailLine{
		Emoji:  statusEmoji(it.Status),
		Name:   oneLine(it.Name),
		Value:  oneLine(it.DisplayValue),
		Signal: oneLine(it.Signal),
		Status: string(it.Status),
		Week:   weekChange(it.Trend),
	}
}

func weekChange(t *domain.IndicatorTrend) string {
	if t == nil || t.ValueChange7d == nil {
		return "n/a"
	}
	arrow := "→"
	switch t.Direction7d {
	case domain.DirectionUp:
		arrow = "↑"
	case domain.DirectionDown:
		arrow = "↓"
	}
	return fmt.Sprintf("%s %+.2f", arrow, *t.ValueChange7d)
}
