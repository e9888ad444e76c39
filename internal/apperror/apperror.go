// Package apperror classifies domain errors into process exit codes for the
// CLI.
package apperror

import (
	"errors"

	"github.com/fxtools/exchange-rates/internal/chart"
	"github.com/fxtools/exchange-rates/internal/rate"
)

type Code string

const (
	InvalidInput Code = "INVALID_INPUT"
	NotCached    Code = "NOT_CACHED"
	Source       Code = "SOURCE"
	Transport    Code = "TRANSPORT"
	Internal     Code = "INTERNAL"
)

func Classify(err error) Code {
	var (
		rangeErr    *rate.InvalidRangeError
		currencyErr *rate.InvalidCurrencyError
		cacheErr    *rate.DateNotInCacheError
		sourceErr   *rate.SourceError
		trErr       *rate.TransportError
	)
	switch {
	case errors.As(err, &rangeErr), errors.As(err, &currencyErr):
		return InvalidInput
	case errors.As(err, &cacheErr), errors.Is(err, chart.ErrEmptyCache):
		return NotCached
	case errors.As(err, &sourceErr):
		return Source
	case errors.As(err, &trErr):
		return Transport
	default:
		return Internal
	}
}

func (c Code) ExitStatus() int {
	switch c {
	case InvalidInput:
		return 2
	case NotCached:
		return 3
	case Source:
		return 4
	case Transport:
		return 5
	default:
		return 1
	}
}
