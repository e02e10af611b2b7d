package gridfilter

import (
	"strings"
	"time"
)

// dayLayouts are the accepted date-string shapes, in order of preference:
// pure calendar date, ISO date-time (with or without seconds/fraction), and
// the two space-separated forms the grid's export path produces.
var dayLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
}

// ParseDay extracts the calendar day from a grid date string, dropping any
// time-of-day part. Returns ok=false when no layout matches; callers treat
// that as "descriptor contributes no predicate", never as an error.
func ParseDay(s string) (time.Time, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range dayLayouts {
		t, err := time.Parse(layout, trimmed)
		if err != nil {
			continue
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// timestampLayout is the literal form day boundaries are bound with. The
// column is a zone-less DATETIME, so boundaries are rendered as strings
// instead of time.Time to keep the driver's location config out of the
// comparison.
const timestampLayout = "2006-01-02 15:04:05"

func startOfDay(day time.Time) string {
	return day.Format(timestampLayout)
}

func startOfNextDay(day time.Time) string {
	return day.AddDate(0, 0, 1).Format(timestampLayout)
}
