package rate

import (
	"context"
	"time"
)

// Store is the durable cache: one row per date, one REAL column per currency.
// The currency column set is fixed when the table is created from the first
// fetched snapshot.
type Store interface {
	// EnsureSchema creates the cache table for the given currency keys. If a
	// table with a different key set exists it is dropped and recreated.
	EnsureSchema(ctx context.Context, keys []string) error

	// CurrencyKeys returns the currency column set of the existing table,
	// or nil when no table exists yet.
	CurrencyKeys(ctx context.Context) ([]string, error)

	IsEmpty(ctx context.Context) (bool, error)

	// ExistingBase returns the base currency of the cached rows, or "" when
	// the cache is empty.
	ExistingBase(ctx context.Context) (string, error)

	// DateBounds returns the min and max cached dates; ok is false when the
	// cache is empty.
	DateBounds(ctx context.Context) (min, max time.Time, ok bool, err error)

	// ExistingDates returns every cached date, not just a window: the cache
	// may span a wider or different range than the one being reconciled.
	ExistingDates(ctx context.Context) (map[time.Time]bool, error)

	PurgeAll(ctx context.Context) error

	// InsertIfAbsent inserts the row unless one already exists for its date.
	// Reports whether a row was inserted; an existing date is a no-op, never
	// an overwrite and never an error.
	InsertIfAbsent(ctx context.Context, row Row) (bool, error)

	// Series returns the cached dates in [from, to] in ascending order and,
	// per requested currency, the rate values aligned to those dates.
	Series(ctx context.Context, currencies []string, from, to time.Time) ([]time.Time, map[string][]float64, error)
}
