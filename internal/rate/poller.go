package rate

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Poller extends the cache by one day at a time as wall-clock time advances
// past the last cached day. Single-threaded: the provider offers no push
// mechanism, so it wakes on a coarse interval and checks the calendar.
type Poller struct {
	store    Store
	source   Source
	base     string
	interval time.Duration
	now      func() time.Time

	cursor time.Time
	keys   []string
	last   *Snapshot
	notify func()
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the wake-up interval.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) { p.interval = d }
}

// WithClock overrides the wall-clock source.
func WithClock(now func() time.Time) PollerOption {
	return func(p *Poller) { p.now = now }
}

// WithNotify sets a callback invoked synchronously after each inserted day.
// The callback must not block.
func WithNotify(fn func()) PollerOption {
	return func(p *Poller) { p.notify = fn }
}

func NewPoller(store Store, source Source, base string, opts ...PollerOption) *Poller {
	p := &Poller{
		store:    store,
		source:   source,
		base:     base,
		interval: time.Hour,
		now:      time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run polls until ctx is cancelled (clean stop, nil) or a provider fetch
// fails (fatal, the error propagates; there is no automatic retry). start
// seeds the cursor when the cache is empty; otherwise the cursor is one day
// past the cached maximum date.
func (p *Poller) Run(ctx context.Context, start time.Time) error {
	if err := p.init(ctx, start); err != nil {
		return err
	}

	slog.Info("daily update poller started",
		"base", p.base, "cursor", p.cursor.Format(dateFormat), "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("daily update poller stopped")
			return nil
		case <-ticker.C:
		}
		if _, err := p.tick(ctx); err != nil {
			return err
		}
	}
}

func (p *Poller) init(ctx context.Context, start time.Time) error {
	empty, err := p.store.IsEmpty(ctx)
	if err != nil {
		return fmt.Errorf("inspect cache: %w", err)
	}

	if !empty {
		cachedBase, err := p.store.ExistingBase(ctx)
		if err != nil {
			return fmt.Errorf("read cached base: %w", err)
		}
		if cachedBase != p.base {
			slog.Warn("base currency mismatch; updating under the cached base",
				"requested", p.base, "cached", cachedBase)
			p.base = cachedBase
		}
		p.keys, err = p.store.CurrencyKeys(ctx)
		if err != nil {
			return fmt.Errorf("read cache columns: %w", err)
		}
		_, max, ok, err := p.store.DateBounds(ctx)
		if err != nil {
			return fmt.Errorf("read cached date bounds: %w", err)
		}
		if ok {
			p.cursor = max.AddDate(0, 0, 1)
			return nil
		}
	}

	p.cursor = Day(start)
	return nil
}

// tick inserts at most one day per wake-up, even when several days have
// elapsed since the last check: catch-up happens one day per wake-up so the
// number of in-flight calls stays bounded and progress stays observable.
func (p *Poller) tick(ctx context.Context) (bool, error) {
	today := Day(p.now())
	if !today.After(p.cursor) {
		return false, nil
	}

	var snap *Snapshot
	if isWeekend(p.cursor) && p.last != nil {
		snap = &Snapshot{Date: p.cursor, Base: p.last.Base, Rates: p.last.Rates}
	} else {
		var err error
		snap, err = p.source.Fetch(ctx, p.cursor, p.base)
		if err != nil {
			return false, err
		}
		p.last = snap
	}

	if p.keys == nil {
		// First insert ever: learn the column set from this snapshot.
		p.keys = snapshotKeys(snap, p.base)
		if err := p.store.EnsureSchema(ctx, p.keys); err != nil {
			return false, fmt.Errorf("create cache table: %w", err)
		}
	}

	row, err := buildRow(snap, p.cursor, p.base, p.keys)
	if err != nil {
		return false, err
	}
	inserted, err := p.store.InsertIfAbsent(ctx, row)
	if err != nil {
		return false, fmt.Errorf("insert row for %s: %w", p.cursor.Format(dateFormat), err)
	}

	slog.Info("cache updated", "date", p.cursor.Format(dateFormat), "base", p.base, "inserted", inserted)
	p.cursor = p.cursor.AddDate(0, 0, 1)
	if p.notify != nil {
		p.notify()
	}
	return true, nil
}
