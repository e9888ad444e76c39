// Package rate provides the sqlite-backed implementation of the cache store.
// One table, one row per date, one REAL column per currency; the column set
// is fixed when the table is created from the first fetched snapshot.
package rate

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	domain "github.com/fxtools/exchange-rates/internal/rate"
)

const (
	tableName  = "exchange_rates"
	dateFormat = "2006-01-02"
)

// Currency codes become column names, so they must be vetted before entering
// DDL.
var codePattern = regexp.MustCompile(`^[A-Z]{3}$`)

type Repository struct {
	db *sql.DB

	mu   sync.RWMutex
	keys []string // column set, loaded lazily; the chart reads while the poller inserts
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) EnsureSchema(ctx context.Context, keys []string) error {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	for _, k := range keys {
		if !codePattern.MatchString(k) {
			return fmt.Errorf("invalid currency code %q", k)
		}
	}

	existing, err := r.tableKeys(ctx)
	if err != nil {
		return err
	}
	if existing != nil {
		if slices.Equal(existing, keys) {
			r.setKeys(existing)
			return nil
		}
		// Base-currency rebuild with a different key set: the column set
		// never mutates in place, the table is recreated.
		if _, err := r.db.ExecContext(ctx, "DROP TABLE "+tableName); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(tableName)
	b.WriteString(" (\n\tdate TEXT PRIMARY KEY,\n\tbase TEXT")
	for _, k := range keys {
		b.WriteString(",\n\t")
		b.WriteString(k)
		b.WriteString(" REAL")
	}
	b.WriteString("\n)")

	if _, err := r.db.ExecContext(ctx, b.String()); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	r.setKeys(keys)
	return nil
}

func (r *Repository) setKeys(keys []string) {
	r.mu.Lock()
	r.keys = keys
	r.mu.Unlock()
}

func (r *Repository) CurrencyKeys(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	keys := r.keys
	r.mu.RUnlock()
	if keys != nil {
		return keys, nil
	}
	keys, err := r.tableKeys(ctx)
	if err != nil {
		return nil, err
	}
	r.setKeys(keys)
	return keys, nil
}

// tableKeys reads the currency columns of the existing table, or nil when no
// table exists yet.
func (r *Repository) tableKeys(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "PRAGMA table_info("+tableName+")")
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		if name == "date" || name == "base" {
			continue
		}
		keys = append(keys, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if keys == nil {
		return nil, nil // table absent
	}
	slices.Sort(keys)
	return keys, nil
}

func (r *Repository) IsEmpty(ctx context.Context) (bool, error) {
	keys, err := r.CurrencyKeys(ctx)
	if err != nil {
		return false, err
	}
	if keys == nil {
		return true, nil
	}

	var count int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+tableName).Scan(&count); err != nil {
		return false, fmt.Errorf("count rows: %w", err)
	}
	return count == 0, nil
}

func (r *Repository) ExistingBase(ctx context.Context) (string, error) {
	empty, err := r.IsEmpty(ctx)
	if err != nil || empty {
		return "", err
	}

	var base string
	if err := r.db.QueryRowContext(ctx, "SELECT base FROM "+tableName+" LIMIT 1").Scan(&base); err != nil {
		return "", fmt.Errorf("read base: %w", err)
	}
	return base, nil
}

func (r *Repository) DateBounds(ctx context.Context) (time.Time, time.Time, bool, error) {
	empty, err := r.IsEmpty(ctx)
	if err != nil || empty {
		return time.Time{}, time.Time{}, false, err
	}

	var minStr, maxStr sql.NullString
	query := "SELECT MIN(date), MAX(date) FROM " + tableName
	if err := r.db.QueryRowContext(ctx, query).Scan(&minStr, &maxStr); err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("date bounds: %w", err)
	}
	if !minStr.Valid || !maxStr.Valid {
		return time.Time{}, time.Time{}, false, nil
	}

	min, err := time.ParseInLocation(dateFormat, minStr.String, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("parse min date: %w", err)
	}
	max, err := time.ParseInLocation(dateFormat, maxStr.String, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("parse max date: %w", err)
	}
	return min, max, true, nil
}

func (r *Repository) ExistingDates(ctx context.Context) (map[time.Time]bool, error) {
	dates := make(map[time.Time]bool)

	keys, err := r.CurrencyKeys(ctx)
	if err != nil {
		return nil, err
	}
	if keys == nil {
		return dates, nil
	}

	rows, err := r.db.QueryContext(ctx, "SELECT date FROM "+tableName)
	if err != nil {
		return nil, fmt.Errorf("existing dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var dateStr string
		if err := rows.Scan(&dateStr); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		t, err := time.ParseInLocation(dateFormat, dateStr, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", dateStr, err)
		}
		dates[t] = true
	}
	return dates, rows.Err()
}

func (r *Repository) PurgeAll(ctx context.Context) error {
	keys, err := r.CurrencyKeys(ctx)
	if err != nil {
		return err
	}
	if keys == nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM "+tableName); err != nil {
		return fmt.Errorf("purge rows: %w", err)
	}
	return nil
}

func (r *Repository) InsertIfAbsent(ctx context.Context, row domain.Row) (bool, error) {
	keys, err := r.CurrencyKeys(ctx)
	if err != nil {
		return false, err
	}
	if keys == nil {
		return false, fmt.Errorf("cache table does not exist yet")
	}

	cols := make([]string, 0, len(keys)+2)
	cols = append(cols, "date", "base")
	args := make([]any, 0, len(keys)+2)
	args = append(args, row.Date.Format(dateFormat), row.Base)
	for _, k := range keys {
		v, ok := row.Rates[k]
		if !ok {
			return false, fmt.Errorf("row for %s is missing currency %s", row.Date.Format(dateFormat), k)
		}
		cols = append(cols, k)
		args = append(args, v)
	}

	query := fmt.Sprintf( //nolint:gosec // column names are vetted currency codes
		"INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		tableName,
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
	)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert row: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *Repository) Series(ctx context.Context, currencies []string, from, to time.Time) ([]time.Time, map[string][]float64, error) {
	keys, err := r.CurrencyKeys(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, c := range currencies {
		if !slices.Contains(keys, c) {
			return nil, nil, fmt.Errorf("currency %s is not cached", c)
		}
	}

	query := fmt.Sprintf( //nolint:gosec // column names checked against the table's own set
		"SELECT date, %s FROM %s WHERE date >= ? AND date <= ? ORDER BY date ASC",
		strings.Join(currencies, ", "), tableName,
	)

	rows, err := r.db.QueryContext(ctx, query, from.Format(dateFormat), to.Format(dateFormat))
	if err != nil {
		return nil, nil, fmt.Errorf("query series: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []time.Time
	series := make(map[string][]float64, len(currencies))
	for rows.Next() {
		var dateStr string
		vals := make([]float64, len(currencies))
		dest := make([]any, 0, len(currencies)+1)
		dest = append(dest, &dateStr)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, fmt.Errorf("scan series row: %w", err)
		}

		t, err := time.ParseInLocation(dateFormat, dateStr, time.UTC)
		if err != nil {
			return nil, nil, fmt.Errorf("parse date %q: %w", dateStr, err)
		}
		dates = append(dates, t)
		for i, c := range currencies {
			series[c] = append(series[c], vals[i])
		}
	}
	return dates, series, rows.Err()
}
