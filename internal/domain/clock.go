package domain

import (
	"strings"
	"time"
)

// Clock supplies the current time to operations that default a date to "now".
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant. Used by tests and the seeder.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

// Accepted layouts for dates supplied by people: day-month-year separated by
// dashes or slashes.
const (
	DateLayoutDash  = "02-01-2006"
	DateLayoutSlash = "02/01/2006"
)

// ParseDate parses "dd-MM-yyyy" or "dd/MM/yyyy" into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(DateLayoutDash, s)
	if err == nil {
		return t, nil
	}
	t, slashErr := time.Parse(DateLayoutSlash, s)
	if slashErr == nil {
		return t, nil
	}
	return time.Time{}, err
}

// FormatDate renders t in the dash layout.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayoutDash)
}
