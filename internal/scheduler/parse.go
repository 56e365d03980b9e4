package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layouts accepted without an explicit offset.
var naiveLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// maxRelative bounds "in N units" forms.
const maxRelative = 10 * 365 * 24 * time.Hour

var (
	relativeRe = regexp.MustCompile(`^in (\d+) (minute|min|hour|day|week)s?$`)
	dayAtRe    = regexp.MustCompile(`^(today|tomorrow) at (\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
)

// ParseTime reads a schedule time. Absolute times without an offset are taken
// in loc; relative forms ("in 10 minutes", "tomorrow at 9am") are resolved
// against now.
func ParseTime(input string, loc *time.Location, now time.Time) (time.Time, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return time.Time{}, fmt.Errorf("%w: empty time", ErrInvalidScheduleTime)
	}
	if loc == nil {
		loc = time.Local
	}

	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, nil
		}
	}

	lower := strings.ToLower(text)
	now = now.In(loc)

	if match := relativeRe.FindStringSubmatch(lower); match != nil {
		n, err := strconv.ParseInt(match[1], 10, 64)
		var unit time.Duration
		switch match[2] {
		case "minute", "min":
			unit = time.Minute
		case "hour":
			unit = time.Hour
		case "day":
			unit = 24 * time.Hour
		case "week":
			unit = 7 * 24 * time.Hour
		}
		if err != nil || n > int64(maxRelative/unit) {
			return time.Time{}, fmt.Errorf("%w: %q is too far ahead", ErrInvalidScheduleTime, input)
		}
		return now.Add(time.Duration(n) * unit), nil
	}

	if match := dayAtRe.FindStringSubmatch(lower); match != nil {
		hour, _ := strconv.Atoi(match[2])
		minute := 0
		if match[3] != "" {
			minute, _ = strconv.Atoi(match[3])
		}
		if match[4] == "pm" && hour < 12 {
			hour += 12
		} else if match[4] == "am" && hour == 12 {
			hour = 0
		}
		if hour > 23 || minute > 59 {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidScheduleTime, input)
		}
		day := now
		if match[1] == "tomorrow" {
			day = now.AddDate(0, 0, 1)
		}
		return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
	}

	return time.Time{}, fmt.Errorf("%w: could not parse %q (use YYYY-MM-DD HH:MM:SS)", ErrInvalidScheduleTime, input)
}

// FormatUntil describes the distance from now to t, e.g. "in 2h30m".
func FormatUntil(t, now time.Time) string {
	d := t.Sub(now).Round(time.Minute)
	if d <= 0 {
		return "due"
	}
	s := strings.TrimSuffix(d.String(), "0s")
	if strings.HasSuffix(s, "h0m") {
		s = strings.TrimSuffix(s, "0m")
	}
	return "in " + s
}
