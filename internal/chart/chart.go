// Package chart renders cached exchange rates as a terminal line chart.
package chart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/guptarohit/asciigraph"

	"github.com/fxtools/exchange-rates/internal/rate"
)

const (
	dateFormat = "2006-01-02"
	height     = 12
	// Cap on x-axis labels, as a full date per cached day would not fit a
	// terminal row.
	axisBins = 8
)

// ErrEmptyCache is returned when there is nothing to chart yet.
var ErrEmptyCache = errors.New("the cache is empty; run with -p to populate it first")

type Service struct {
	store rate.Store
}

func NewService(store rate.Store) *Service {
	return &Service{store: store}
}

// Render charts the requested currencies plus the base over the full cached
// window. The requested range is validated against the full cached range: a
// range the cache does not cover returns *rate.DateNotInCacheError and asks
// the caller to repopulate. A base differing from the cached one is a
// warning; the chart uses the cached base.
func (s *Service) Render(ctx context.Context, rng rate.DateRange, base string, currencies []string) (string, error) {
	empty, err := s.store.IsEmpty(ctx)
	if err != nil {
		return "", fmt.Errorf("inspect cache: %w", err)
	}
	if empty {
		return "", ErrEmptyCache
	}

	cachedBase, err := s.store.ExistingBase(ctx)
	if err != nil {
		return "", fmt.Errorf("read cached base: %w", err)
	}
	if cachedBase != base {
		slog.Warn("base currency mismatch; charting under the cached base",
			"requested", base, "cached", cachedBase)
		base = cachedBase
	}

	min, max, ok, err := s.store.DateBounds(ctx)
	if err != nil {
		return "", fmt.Errorf("read cached date bounds: %w", err)
	}
	if !ok {
		return "", errors.New("cache has no date bounds")
	}
	if rng.From.Before(min) {
		return "", &rate.DateNotInCacheError{Date: rng.From, Min: min, Max: max}
	}
	if rng.To.After(max) {
		return "", &rate.DateNotInCacheError{Date: rng.To, Min: min, Max: max}
	}

	keys, err := s.store.CurrencyKeys(ctx)
	if err != nil {
		return "", fmt.Errorf("read cache columns: %w", err)
	}
	if err := rate.ValidateCurrencies(currencies, keys); err != nil {
		return "", err
	}
	if !slices.Contains(currencies, base) {
		currencies = append(slices.Clone(currencies), base)
	}

	dates, series, err := s.store.Series(ctx, currencies, min, max)
	if err != nil {
		return "", fmt.Errorf("query series: %w", err)
	}

	data := make([][]float64, len(currencies))
	for i, c := range currencies {
		data[i] = series[c]
	}

	plot := asciigraph.PlotMany(data,
		asciigraph.Height(height),
		asciigraph.SeriesLegends(currencies...),
		asciigraph.Caption(title(base, currencies)),
	)

	return plot + "\n" + axisLabels(dates, axisBins) + "\n", nil
}

func title(base string, currencies []string) string {
	others := make([]string, 0, len(currencies))
	for _, c := range currencies {
		if c != base {
			others = append(others, c)
		}
	}
	return fmt.Sprintf("Exchange rates for %s when base is %s", strings.Join(others, ", "), base)
}

// axisLabels picks up to bins evenly spaced dates, weekends included, as the
// x-axis footer.
func axisLabels(dates []time.Time, bins int) string {
	if len(dates) == 0 {
		return ""
	}
	if len(dates) < bins {
		bins = len(dates)
	}

	labels := make([]string, bins)
	for i := 0; i < bins; i++ {
		idx := 0
		if bins > 1 {
			idx = i * (len(dates) - 1) / (bins - 1)
		}
		labels[i] = dates[idx].Format(dateFormat)
	}
	return strings.Join(labels, "   ")
}
