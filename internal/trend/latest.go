package trend

import (
	"strings"

	"recession-pulse/internal/domain"
)

// LatestPerSlug reduces readings to one row per slug: newest reading date
// wins, ties go to the newest insertion. Rows whose name collides with an
// already kept indicator are dropped as well.
func LatestPerSlug(readings []domain.IndicatorReading) []domain.IndicatorReading {
	ordered := sortByRecency(readings)

	seenSlug := make(map[string]struct{}, len(ordered))
	seenName := make(map[string]struct{}, len(ordered))
	out := make([]domain.IndicatorReading, 0, len(ordered))
	for _, r := range ordered {
		if _, ok := seenSlug[r.Slug]; ok {
			continue
		}
		seenSlug[r.Slug] = struct{}{}
		name := strings.ToLower(strings.TrimSpace(r.Name))
		if name != "" {
			if _, ok := seenName[name]; ok {
				continue
			}
			seenName[name] = struct{}{}
		}
		out = append(out, r)
	}
	return out
}
