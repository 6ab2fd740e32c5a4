package model

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates. Cached payloads are plain
// text, so dates are always rendered as strings, never native time values.
const DateLayout = "2006-01-02"

// Date is a calendar date with no time component, pinned to UTC.
type Date struct {
	time.Time
}

// NewDate builds a Date from year/month/day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string { return d.Format(DateLayout) }

// After reports whether d is after o.
func (d Date) After(o Date) bool { return d.Time.After(o.Time) }

// Sub returns the duration between two dates.
func (d Date) Sub(o Date) time.Duration { return d.Time.Sub(o.Time) }

// AddMonths returns the date n calendar months later.
func (d Date) AddMonths(n int) Date { return Date{d.AddDate(0, n, 0)} }

// MarshalJSON renders the date as a quoted "YYYY-MM-DD" string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

// UnmarshalJSON parses a quoted "YYYY-MM-DD" string.
func (d *Date) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("date must be a %q string", DateLayout)
	}
	parsed, err := ParseDate(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
