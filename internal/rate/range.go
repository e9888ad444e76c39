package rate

import (
	"fmt"
	"time"
)

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	From time.Time
	To   time.Time
}

// ResolveRange parses start and end as YYYY-MM-DD dates and validates them.
func ResolveRange(start, end string) (DateRange, error) {
	from, err := time.ParseInLocation(dateFormat, start, time.UTC)
	if err != nil {
		return DateRange{}, fmt.Errorf("parse start date %q: %w", start, err)
	}
	to, err := time.ParseInLocation(dateFormat, end, time.UTC)
	if err != nil {
		return DateRange{}, fmt.Errorf("parse end date %q: %w", end, err)
	}
	return NewRange(from, to)
}

// NewRange validates that from is strictly before to.
func NewRange(from, to time.Time) (DateRange, error) {
	from, to = Day(from), Day(to)
	if !from.Before(to) {
		return DateRange{}, &InvalidRangeError{Start: from, End: to}
	}
	return DateRange{From: from, To: to}, nil
}

// Days returns the number of dates in the range, both ends included.
func (r DateRange) Days() int {
	return int(r.To.Sub(r.From).Hours()/24) + 1
}

// Dates expands the range into its contiguous date sequence, weekends
// included.
func (r DateRange) Dates() []time.Time {
	dates := make([]time.Time, 0, r.Days())
	for d := r.From; !d.After(r.To); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// Contains reports whether d falls inside the range.
func (r DateRange) Contains(d time.Time) bool {
	return !d.Before(r.From) && !d.After(r.To)
}
