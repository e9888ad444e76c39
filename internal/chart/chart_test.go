package chart

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fxtools/exchange-rates/internal/platform/sqlite"
	"github.com/fxtools/exchange-rates/internal/rate"
	raterepo "github.com/fxtools/exchange-rates/internal/repository/rate"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

// seededStore returns a repository with USD-based rows for 2024-01-01..01-05.
func seededStore(t *testing.T) *raterepo.Repository {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := raterepo.NewRepository(db.DB)
	ctx := context.Background()
	if err := repo.EnsureSchema(ctx, []string{"CAD", "EUR", "USD"}); err != nil {
		t.Fatal(err)
	}
	for d := 1; d <= 5; d++ {
		row := rate.Row{
			Date: day(d),
			Base: "USD",
			Rates: map[string]float64{
				"CAD": 1.30 + float64(d)/100,
				"EUR": 0.90 + float64(d)/100,
				"USD": 1.0,
			},
		}
		if _, err := repo.InsertIfAbsent(ctx, row); err != nil {
			t.Fatal(err)
		}
	}
	return repo
}

func testRange(t *testing.T, from, to time.Time) rate.DateRange {
	t.Helper()
	rng, err := rate.NewRange(from, to)
	if err != nil {
		t.Fatal(err)
	}
	return rng
}

func TestRender(t *testing.T) {
	svc := NewService(seededStore(t))

	out, err := svc.Render(context.Background(), testRange(t, day(1), day(5)), "USD", []string{"EUR", "CAD"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "when base is USD") {
		t.Errorf("output missing title, got:\n%s", out)
	}
	// Footer spans the full cached window.
	if !strings.Contains(out, "2024-01-01") || !strings.Contains(out, "2024-01-05") {
		t.Errorf("output missing axis dates, got:\n%s", out)
	}
}

func TestRender_EmptyCache(t *testing.T) {
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	svc := NewService(raterepo.NewRepository(db.DB))

	_, err = svc.Render(context.Background(), testRange(t, day(1), day(5)), "USD", []string{"EUR"})
	if !errors.Is(err, ErrEmptyCache) {
		t.Fatalf("error = %v, want ErrEmptyCache", err)
	}
}

// noBoundsStore reports a non-empty cache without date bounds. The sqlite
// store never does this, but the error path must not wrap a nil cause.
type noBoundsStore struct {
	rate.Store
}

func (noBoundsStore) IsEmpty(context.Context) (bool, error) { return false, nil }

func (noBoundsStore) DateBounds(context.Context) (time.Time, time.Time, bool, error) {
	return time.Time{}, time.Time{}, false, nil
}

func TestRender_MissingBoundsIsPlainError(t *testing.T) {
	svc := NewService(noBoundsStore{seededStore(t)})

	_, err := svc.Render(context.Background(), testRange(t, day(1), day(5)), "USD", []string{"EUR"})
	if err == nil {
		t.Fatal("expected an error for missing bounds")
	}
	if !strings.Contains(err.Error(), "no date bounds") {
		t.Errorf("error = %v, want a missing-bounds message", err)
	}
	if strings.Contains(err.Error(), "%!w") {
		t.Errorf("error wraps a nil cause: %v", err)
	}
}

func TestRender_RangeOutsideCache(t *testing.T) {
	svc := NewService(seededStore(t))

	_, err := svc.Render(context.Background(), testRange(t, day(1), day(9)), "USD", []string{"EUR"})
	var cacheErr *rate.DateNotInCacheError
	if !errors.As(err, &cacheErr) {
		t.Fatalf("error = %v, want *rate.DateNotInCacheError", err)
	}
	if !cacheErr.Date.Equal(day(9)) {
		t.Errorf("offending date = %s, want 2024-01-09", cacheErr.Date.Format("2006-01-02"))
	}
}

func TestRender_UnknownCurrency(t *testing.T) {
	svc := NewService(seededStore(t))

	_, err := svc.Render(context.Background(), testRange(t, day(1), day(5)), "USD", []string{"XXX"})
	var curErr *rate.InvalidCurrencyError
	if !errors.As(err, &curErr) {
		t.Fatalf("error = %v, want *rate.InvalidCurrencyError", err)
	}
}

func TestRender_BaseMismatchUsesCachedBase(t *testing.T) {
	svc := NewService(seededStore(t))

	out, err := svc.Render(context.Background(), testRange(t, day(1), day(5)), "EUR", []string{"CAD"})
	if err != nil {
		t.Fatalf("mismatch must not be fatal for charting: %v", err)
	}
	if !strings.Contains(out, "when base is USD") {
		t.Errorf("chart must use the cached base, got:\n%s", out)
	}
}

func TestAxisLabels(t *testing.T) {
	var dates []time.Time
	for d := 1; d <= 20; d++ {
		dates = append(dates, day(d))
	}

	got := axisLabels(dates, 8)
	labels := strings.Fields(got)
	if len(labels) != 8 {
		t.Fatalf("labels = %d, want 8", len(labels))
	}
	if labels[0] != "2024-01-01" || labels[7] != "2024-01-20" {
		t.Errorf("labels must span the window, got %v", labels)
	}

	// Fewer dates than bins: one label per date.
	got = axisLabels(dates[:3], 8)
	if len(strings.Fields(got)) != 3 {
		t.Errorf("short window labels = %q, want 3 labels", got)
	}
}
