// Package timeutil holds calendar helpers for the academy's local timezone.
// Belt rules work on calendar dates, so most callers only need ParseDate,
// Today and FormatDate.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTimezone is used when no timezone is configured.
const DefaultTimezone = "America/Sao_Paulo"

// Common date formats.
const (
	// FormatDate is the wire format for dates (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatBrazilianDate is DD/MM/YYYY, accepted on input.
	FormatBrazilianDate = "02/01/2006"
)

// LoadLocation resolves a timezone name, falling back to UTC when the name
// is empty or unknown to the host's tz database.
func LoadLocation(name string) *time.Location {
	if strings.TrimSpace(name) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Clock returns the current time. Handlers and jobs take a Clock so tests
// can pin "today".
type Clock func() time.Time

// SystemClock is the real clock.
func SystemClock() time.Time { return time.Now() }

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// Today returns the current calendar date at loc as midnight UTC.
func Today(clock Clock, loc *time.Location) time.Time {
	if clock == nil {
		clock = SystemClock
	}
	return DateIn(clock(), loc)
}

// DateIn returns the calendar day t falls on at loc, as midnight UTC.
func DateIn(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses YYYY-MM-DD, also accepting DD/MM/YYYY. The result is
// midnight UTC of that calendar date.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{FormatDate, FormatBrazilianDate} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", value)
}

// FormatDateStr formats the calendar date of t.
func FormatDateStr(t time.Time) string {
	return t.Format(FormatDate)
}
