package utils

import (
	"fmt"
	"strconv"
	"time"
)

// dateLayout is the YYYY-MM-DD calendar date format
const dateLayout = "2006-01-02"

// maxRangeDays bounds DaysBetween so a typo cannot expand into centuries
const maxRangeDays = 3660

// Clamp limits a value between min and max
func Clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ParseLimit reads an optional row limit, falling back to def and clamping to [0, max]
func ParseLimit(raw string, def, max int) (int, error) {
	if raw == "" {
		return Clamp(def, 0, max), nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("limit %q is not an integer", raw)
	}
	return Clamp(n, 0, max), nil
}

// DaysBetween lists every YYYY-MM-DD date from from to to, both inclusive
func DaysBetween(from, to string) ([]string, error) {
	start, err := time.Parse(dateLayout, from)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", from, err)
	}
	end, err := time.Parse(dateLayout, to)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", to, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s is before start date %s", to, from)
	}

	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if len(days) >= maxRangeDays {
			return nil, fmt.Errorf("range %s..%s exceeds %d days", from, to, maxRangeDays)
		}
		days = append(days, d.Format(dateLayout))
	}
	return days, nil
}
