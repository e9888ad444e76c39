package rate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Mode describes how a reconciliation pass treated the cache.
type Mode string

const (
	// ModeIncremental fetches only requested dates missing from the cache.
	ModeIncremental Mode = "incremental"
	// ModeRebuild purges the cache and refetches the entire requested range,
	// used on an explicit base-currency change.
	ModeRebuild Mode = "rebuild"
	// ModeSkipped means nothing was fetched because the requested base did
	// not match the cached one and no rebuild was requested.
	ModeSkipped Mode = "skipped"
)

// Result is the outcome of one reconciliation pass.
type Result struct {
	// Base is the base currency actually in effect. On a mismatch without a
	// rebuild this is the cached base, not the requested one.
	Base         string
	Mode         Mode
	Fetched      int
	Inserted     int
	BaseMismatch bool
}

// Service reconciles the cache against a requested date range and base
// currency. Fetches run strictly in ascending date order, one at a time,
// because each weekend's carry-forward depends on the preceding snapshot.
type Service struct {
	store  Store
	source Source
}

func NewService(store Store, source Source) *Service {
	return &Service{store: store, source: source}
}

// Reconcile brings the cache in line with the requested range and base.
// With rebuild false, a non-empty cache keeps its existing base currency: a
// differing request is a warning, not an error, and nothing is fetched.
// With rebuild true, a base change purges the cache and refetches the whole
// range. Re-running with identical arguments is a no-op.
//
// filter lists the currencies downstream consumers will read. It is checked
// against the known currency set as soon as that set is available — before
// any range fetching and before a rebuild purges anything — so a typo fails
// the run instead of surfacing after hundreds of fetches. nil skips the
// check.
func (s *Service) Reconcile(ctx context.Context, rng DateRange, base string, rebuild bool, filter []string) (*Result, error) {
	empty, err := s.store.IsEmpty(ctx)
	if err != nil {
		return nil, fmt.Errorf("inspect cache: %w", err)
	}

	var cachedBase string
	if !empty {
		cachedBase, err = s.store.ExistingBase(ctx)
		if err != nil {
			return nil, fmt.Errorf("read cached base: %w", err)
		}
	}

	if !empty && cachedBase != base && !rebuild {
		slog.Warn("base currency mismatch; cache keeps its base, rerun with rebuild to repopulate",
			"requested", base, "cached", cachedBase)
		return &Result{Base: cachedBase, Mode: ModeSkipped, BaseMismatch: true}, nil
	}

	mode := ModeIncremental
	if !empty && cachedBase != base {
		mode = ModeRebuild
	}

	var toFetch []time.Time
	if mode == ModeIncremental && !empty {
		existing, err := s.store.ExistingDates(ctx)
		if err != nil {
			return nil, fmt.Errorf("read cached dates: %w", err)
		}
		for _, d := range rng.Dates() {
			if !existing[d] {
				toFetch = append(toFetch, d)
			}
		}
	} else {
		toFetch = rng.Dates()
	}

	res := &Result{Base: base, Mode: mode}
	if len(toFetch) == 0 {
		// Nothing to fetch means the cache is populated, so its own column
		// set is the known currency set.
		if len(filter) > 0 {
			keys, err := s.store.CurrencyKeys(ctx)
			if err != nil {
				return nil, fmt.Errorf("read cache columns: %w", err)
			}
			if err := ValidateCurrencies(filter, keys); err != nil {
				return nil, err
			}
		}
		slog.Info("cache already covers requested range",
			"base", base, "from", rng.From.Format(dateFormat), "to", rng.To.Format(dateFormat))
		return res, nil
	}

	var keys []string
	var last *Snapshot
	if empty || mode == ModeRebuild {
		// Bootstrap: the currency column set is only known after the first
		// provider response, so fetch the first date before touching the
		// schema. The snapshot is reused for its own date below.
		last, err = s.source.Fetch(ctx, rng.From, base)
		if err != nil {
			return nil, err
		}
		res.Fetched++
		keys = snapshotKeys(last, base)

		// Validate the filter before the cache is purged or the range
		// fetched.
		if err := ValidateCurrencies(filter, keys); err != nil {
			return nil, err
		}

		if mode == ModeRebuild {
			slog.Info("purging cache for base currency change", "old", cachedBase, "new", base)
			if err := s.store.PurgeAll(ctx); err != nil {
				return nil, fmt.Errorf("purge cache: %w", err)
			}
		}
		if err := s.store.EnsureSchema(ctx, keys); err != nil {
			return nil, fmt.Errorf("create cache table: %w", err)
		}
	} else {
		keys, err = s.store.CurrencyKeys(ctx)
		if err != nil {
			return nil, fmt.Errorf("read cache columns: %w", err)
		}
		if err := ValidateCurrencies(filter, keys); err != nil {
			return nil, err
		}
	}

	for _, d := range toFetch {
		var snap *Snapshot
		switch {
		case last != nil && last.Date.Equal(d):
			snap = last
		case isWeekend(d) && last != nil:
			// The provider publishes no weekend rates; carry the most recent
			// snapshot forward instead of a network call.
			snap = &Snapshot{Date: d, Base: last.Base, Rates: last.Rates}
		default:
			// A weekend date with no predecessor in this pass is fetched
			// directly: the provider answers any date with the latest
			// published rates.
			snap, err = s.source.Fetch(ctx, d, base)
			if err != nil {
				return nil, err
			}
			res.Fetched++
			last = snap
		}

		row, err := buildRow(snap, d, base, keys)
		if err != nil {
			return nil, err
		}
		inserted, err := s.store.InsertIfAbsent(ctx, row)
		if err != nil {
			return nil, fmt.Errorf("insert row for %s: %w", d.Format(dateFormat), err)
		}
		if inserted {
			res.Inserted++
		}
	}

	slog.Info("reconciled cache", "mode", mode, "base", base,
		"fetched", res.Fetched, "inserted", res.Inserted)
	return res, nil
}

// buildRow projects a snapshot onto the table's currency column set. The base
// currency column is forced to exactly 1.0.
func buildRow(snap *Snapshot, date time.Time, base string, keys []string) (Row, error) {
	rates := make(map[string]float64, len(keys))
	for _, k := range keys {
		if k == base {
			rates[k] = 1.0
			continue
		}
		v, ok := snap.Rates[k]
		if !ok {
			return Row{}, fmt.Errorf("snapshot for %s is missing currency %s", date.Format(dateFormat), k)
		}
		rates[k] = v
	}
	base2 := snap.Base
	if base2 == "" {
		base2 = base
	}
	return Row{Date: date, Base: base2, Rates: rates}, nil
}

// snapshotKeys returns the sorted currency key set of a bootstrap snapshot,
// with the base currency included even when the provider omits it.
func snapshotKeys(snap *Snapshot, base string) []string {
	keys := make([]string, 0, len(snap.Rates)+1)
	for k := range snap.Rates {
		keys = append(keys, k)
	}
	if _, ok := snap.Rates[base]; !ok {
		keys = append(keys, base)
	}
	sort.Strings(keys)
	return keys
}

// ValidateCurrencies checks that every requested currency is part of the
// known set.
func ValidateCurrencies(requested, known []string) error {
	set := make(map[string]bool, len(known))
	for _, k := range known {
		set[k] = true
	}
	var invalid []string
	for _, c := range requested {
		if !set[c] {
			invalid = append(invalid, c)
		}
	}
	if len(invalid) > 0 {
		return &InvalidCurrencyError{Invalid: invalid, Known: known}
	}
	return nil
}
