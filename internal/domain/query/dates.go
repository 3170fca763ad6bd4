package query

import (
	"fmt"
	"strings"
	"time"
)

// Open bounds used when only one end of a date range is given.
var (
	OpenStart = time.Unix(0, 0).UTC()
	OpenEnd   = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)
)

// ParseDateRange reads wire bounds in RFC3339 or YYYY-MM-DD form. Both
// empty means no date predicate (nil). A missing end is open, and a
// date-only to covers that whole UTC day.
func ParseDateRange(from, to string) (*DateRange, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" && to == "" {
		return nil, nil
	}
	dates := DateRange{Start: OpenStart, End: OpenEnd}
	if from != "" {
		start, _, err := ParseTime(from)
		if err != nil {
			return nil, err
		}
		dates.Start = start
	}
	if to != "" {
		end, dateOnly, err := ParseTime(to)
		if err != nil {
			return nil, err
		}
		if dateOnly {
			end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		dates.End = end
	}
	return &dates, nil
}

// ParseTime accepts RFC3339 or a UTC calendar date; dateOnly reports which.
func ParseTime(s string) (t time.Time, dateOnly bool, err error) {
	if t, err = time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	if t, err = time.Parse(time.DateOnly, s); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("%w: time %q must be RFC3339 or YYYY-MM-DD", ErrInvalidSpec, s)
}
