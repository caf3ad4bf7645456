package core

import (
	"strings"
	"time"
)

// DateLayout is the wire and display format of calendar dates.
const DateLayout = "2006-01-02"

// NowFunc returns the current time; mockable in tests.
var NowFunc = func() time.Time { return time.Now().UTC() }

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// ParseDate parses a YYYY-MM-DD date into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, CleanString(s), time.UTC)
}

// Today returns the current UTC calendar date, formatted.
func Today() string {
	return NowFunc().Format(DateLayout)
}
