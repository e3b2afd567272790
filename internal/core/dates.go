package core

import (
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// ParseDate normalises a request value to YYYY-MM-DD. RFC 3339 timestamps are
// accepted and truncated to their date part.
func ParseDate(field string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", Invalid(field, "must be a date (YYYY-MM-DD)")
	}
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t.Format(DateLayout), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(DateLayout), nil
	}
	return "", Invalid(field, "must be a date (YYYY-MM-DD)")
}

// ParseMonth normalises a request value to YYYY-MM. A full date is accepted
// and truncated to its month.
func ParseMonth(field string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", Invalid(field, "must be a month (YYYY-MM)")
	}
	s = strings.TrimSpace(s)
	if t, err := time.Parse(MonthLayout, s); err == nil {
		return t.Format(MonthLayout), nil
	}
	if d, err := ParseDate(field, s); err == nil {
		return d[:7], nil
	}
	return "", Invalid(field, "must be a month (YYYY-MM)")
}

// MonthAnchor returns the first day of the month v falls in, as YYYY-MM-DD.
func MonthAnchor(field string, v any) (string, error) {
	m, err := ParseMonth(field, v)
	if err != nil {
		return "", err
	}
	return m + "-01", nil
}

// Today formats now as a calendar date.
func Today(now time.Time) string {
	return now.Format(DateLayout)
}

// StartOfMonth returns midnight on the first day of t's month, in t's location.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
