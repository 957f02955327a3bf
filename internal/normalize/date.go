// Package normalize converts the date, time and status representations found
// in clinic sources into canonical form.
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// 15/01/2025, 5-1-25, 15.01.2025, optionally followed by a time part.
	dayFirst = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4}|\d{2})(?:[ T].*)?$`)
	// 2025-01-15, 2025/1/15, 2025-01-15T09:00:00Z, 2025-01-15 09:00:00.
	yearFirst = regexp.MustCompile(`^(\d{4})[/.\-](\d{1,2})[/.\-](\d{1,2})(?:[ T].*)?$`)
	clock     = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2})(?:\.\d+)?)?$`)
	// 0.375, 9,5, 14. No sign, exponent or hex form.
	decimal = regexp.MustCompile(`^\d+(?:[.,]\d*)?$`)
)

// Date returns raw as a canonical YYYY-MM-DD date.
//
// Timestamps keep the calendar date as written. A trailing zone is not
// applied, so "2025-01-15T23:30:00-05:00" stays on the 15th.
func Date(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	var y, m, d int
	if parts := yearFirst.FindStringSubmatch(raw); parts != nil {
		y, m, d = atoi(parts[1]), atoi(parts[2]), atoi(parts[3])
	} else if parts := dayFirst.FindStringSubmatch(raw); parts != nil {
		d, m, y = atoi(parts[1]), atoi(parts[2]), atoi(parts[3])
		if len(parts[3]) == 2 {
			y += 2000
		}
	} else {
		return "", false
	}

	t, ok := calendarDate(y, m, d)
	if !ok {
		return "", false
	}
	return t.Format(time.DateOnly), true
}

// DateValue rebuilds a canonical date as noon local time.
func DateValue(canonical string) (time.Time, bool) {
	parts := yearFirst.FindStringSubmatch(canonical)
	if parts == nil || len(canonical) != len(time.DateOnly) {
		return time.Time{}, false
	}
	return calendarDate(atoi(parts[1]), atoi(parts[2]), atoi(parts[3]))
}

// calendarDate builds the date from components at 12:00 local so no zone
// offset can move it to a neighbouring day. Out-of-range components such as
// 31/02 are rejected instead of rolling over.
func calendarDate(y, m, d int) (time.Time, bool) {
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 12, 0, 0, 0, time.Local)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

// Time returns raw as a canonical HH:MM clock time.
//
// Besides H:MM and HH:MM:SS it accepts spreadsheet decimals: a value below 1
// is a fraction of a day (0.375 is 09:00) and a value from 1 up to 24 is
// decimal hours (9.5 is 09:30).
func Time(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if parts := clock.FindStringSubmatch(raw); parts != nil {
		h, m := atoi(parts[1]), atoi(parts[2])
		if h > 23 || m > 59 || (parts[3] != "" && atoi(parts[3]) > 59) {
			return "", false
		}
		return formatClock(h, m), true
	}

	if !decimal.MatchString(raw) {
		return "", false
	}
	v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil || v >= 24 {
		return "", false
	}
	if v < 1 {
		v *= 24
	}
	h := math.Floor(v)
	m := math.Round((v - h) * 60)
	if m == 60 {
		h++
		m = 0
	}
	// Rounding a value just under midnight must not carry into hour 24.
	if h > 23 {
		h, m = 23, 59
	}
	return formatClock(int(h), int(m)), true
}

// ClockFromSeconds converts a seconds-since-midnight value, the way the
// clinic database stores appointment hours, to HH:MM.
func ClockFromSeconds(secs int) (string, bool) {
	if secs < 0 || secs >= 24*60*60 {
		return "", false
	}
	return formatClock(secs/3600, secs%3600/60), true
}

func formatClock(h, m int) string {
	return fmt.Sprintf("%02d:%02d", h, m)
}

// atoi is only called on regexp digit groups.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
