package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"recession-pulse/internal/domain"

	"gopkg.in/yaml.v3"
)

// readingFile is the on-disk shape accepted by `alertctl ingest`:
//
//	date: 2026-03-20
//	readings:
//	  - slug: sahm-rule
//	    name: Sahm Rule
//	    value: 0.43
//	    status: watch
//	    signal: Unemployment drifting up
//
// A reading's own date overrides the file date.
type readingFile struct {
	Date     string        `yaml:"date"`
	Readings []readingSpec `yaml:"readings"`
}

type readingSpec struct {
	Slug    string   `yaml:"slug"`
	Name    string   `yaml:"name"`
	Value   *float64 `yaml:"value"`
	Display string   `yaml:"display"`
	Status  string   `yaml:"status"`
	Signal  string   `yaml:"signal"`
	Date    string   `yaml:"date"`
}

func parseReadings(raw []byte) ([]domain.IndicatorReading, error) {
	var f readingFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse readings: %w", err)
	}
	if len(f.Readings) == 0 {
		return nil, fmt.Errorf("no readings in file")
	}

	out := make([]domain.IndicatorReading, 0, len(f.Readings))
	seen := make(map[string]struct{}, len(f.Readings))
	for i, spec := range f.Readings {
		r, err := spec.toDomain(f.Date)
		if err != nil {
			return nil, fmt.Errorf("reading %d: %w", i+1, err)
		}
		key := r.Slug + "|" + r.ReadingDate.Format(time.DateOnly)
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("reading %d: duplicate %s on %s", i+1, r.Slug, r.ReadingDate.Format(time.DateOnly))
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out, nil
}

func (s readingSpec) toDomain(fileDate string) (domain.IndicatorReading, error) {
	slug := strings.TrimSpace(s.Slug)
	if slug == "" {
		return domain.IndicatorReading{}, fmt.Errorf("slug is required")
	}
	status := domain.Status(strings.ToLower(strings.TrimSpace(s.Status)))
	if !status.IsValid() {
		return domain.IndicatorReading{}, fmt.Errorf("%s: invalid status %q", slug, s.Status)
	}

	dateStr := strings.TrimSpace(s.Date)
	if dateStr == "" {
		dateStr = strings.TrimSpace(fileDate)
	}
	if dateStr == "" {
		return domain.IndicatorReading{}, fmt.Errorf("%s: date is required", slug)
	}
	date, err := time.Parse(time.DateOnly, dateStr)
	if err != nil {
		return domain.IndicatorReading{}, fmt.Errorf("%s: invalid date %q", slug, dateStr)
	}

	name := strings.TrimSpace(s.Name)
	if name == "" {
		name = slug
	}
	display := strings.TrimSpace(s.Display)
	if display == "" && s.Value != nil {
		display = strconv.FormatFloat(*s.Value, 'f', -1, 64)
	}

	return domain.IndicatorReading{
		Slug:         slug,
		Name:         name,
		DisplayValue: display,
		NumericValue: s.Value,
		Status:       status,
		Signal:       strings.TrimSpace(s.Signal),
		ReadingDate:  date,
	}, nil
}
