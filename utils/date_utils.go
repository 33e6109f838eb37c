package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateFormats are tried in order when parsing a caller-supplied date.
// Frontends send a mix of RFC 3339 and bare dates.
var dateFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseFlexibleDate parses a date string, trying multiple formats.
func ParseFlexibleDate(dateStr string) (time.Time, error) {
	var lastErr error
	for _, format := range dateFormats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, fmt.Errorf("unparsable date %q: %w", dateStr, lastErr)
}

var relativeRangePattern = regexp.MustCompile(`^(\d+)([dwmy])$`)

// ParseTimeRange turns a relative range token into a concrete
// [start, end] window anchored at now. Accepted forms: "today", "7d",
// "4w", "3m", "1y". The window end is now; the start is the beginning of
// the day N days/weeks/months/years back.
func ParseTimeRange(rangeStr string, now time.Time) (time.Time, time.Time, error) {
	token := strings.ToLower(strings.TrimSpace(rangeStr))
	if token == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("empty time range")
	}

	if token == "today" {
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return start, now, nil
	}

	m := relativeRangePattern.FindStringSubmatch(token)
	if m == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("unrecognized time range %q (expected e.g. 7d, 4w, 3m, 1y, today)", rangeStr)
	}

	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid time range quantity %q", m[1])
	}

	var start time.Time
	switch m[2] {
	case "d":
		start = now.AddDate(0, 0, -n)
	case "w":
		start = now.AddDate(0, 0, -7*n)
	case "m":
		start = now.AddDate(0, -n, 0)
	case "y":
		start = now.AddDate(-n, 0, 0)
	}
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, now.Location())
	return start, now, nil
}
