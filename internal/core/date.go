package core

import (
	"strings"
	"time"
)

// DateLayout is the calendar date key format used by events and summaries.
const DateLayout = "2006-01-02"

// ValidateDateKey checks that s is a real calendar date in YYYY-MM-DD form.
func ValidateDateKey(s string) error {
	if strings.TrimSpace(s) == "" {
		return &ValidationError{Field: "date", Reason: "required"}
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	return nil
}

// ParseDateKey parses a date key as midnight in loc.
func ParseDateKey(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	return t, nil
}

// DateKey formats t as a calendar date in t's own location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}
