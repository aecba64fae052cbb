package domain

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for target dates
const DateLayout = "2006-01-02"

// compactLayout is the V_TIME text key used by the battery stat table
const compactLayout = "20060102"

// Day is a single calendar day in the aggregation time zone
type Day struct {
	start time.Time
}

// ParseDay validates a YYYY-MM-DD string as a real calendar date.
// time.ParseInLocation rejects out-of-range values such as 2024-02-30.
func ParseDay(s string, loc *time.Location) (Day, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return Day{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD calendar date", ErrInvalidDateInput, s)
	}
	return Day{start: t}, nil
}

// DayOf returns the calendar day containing t in t's location
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{start: time.Date(y, m, d, 0, 0, 0, 0, t.Location())}
}

// Start is midnight at the beginning of the day; it doubles as the daily row key
func (d Day) Start() time.Time { return d.start }

// String renders the day as YYYY-MM-DD
func (d Day) String() string { return d.start.Format(DateLayout) }

// Compact renders the day as YYYYMMDD
func (d Day) Compact() string { return d.start.Format(compactLayout) }

// IsZero reports whether the day was never set
func (d Day) IsZero() bool { return d.start.IsZero() }

// Next returns the following calendar day
func (d Day) Next() Day { return Day{start: d.start.AddDate(0, 0, 1)} }

// Window returns the half-open interval [start, next start)
func (d Day) Window() Window {
	return Window{Start: d.start, End: d.start.AddDate(0, 0, 1)}
}

// Window is a half-open time range used by every source predicate of a rule
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside [Start, End)
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// ParseCompactDay reads a YYYYMMDD key back into a Day
func ParseCompactDay(s string, loc *time.Location) (Day, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(compactLayout, s, loc)
	if err != nil {
		return Day{}, fmt.Errorf("%w: %q is not a YYYYMMDD key", ErrInvalidDateInput, s)
	}
	return Day{start: t}, nil
}
