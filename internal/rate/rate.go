// Package rate implements the exchange-rate cache domain: date-range
// resolution, the reconciliation engine that keeps the local cache in sync
// with the remote provider, and the daily update poller.
package rate

import "time"

const dateFormat = "2006-01-02"

// Snapshot is one provider response for one calendar date. Rates map
// currency codes to the value of one unit of Base in that currency;
// Rates[Base] is always exactly 1.0.
type Snapshot struct {
	Date  time.Time
	Base  string
	Rates map[string]float64
}

// Row is the persisted form of a Snapshot. Its rate keys match the cache
// table's currency column set, which is fixed when the table is created.
type Row struct {
	Date  time.Time
	Base  string
	Rates map[string]float64
}

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
