package rate

import (
	"fmt"
	"strings"
	"time"
)

// InvalidRangeError reports a start date that is not strictly before the end
// date. Raised before any I/O.
type InvalidRangeError struct {
	Start time.Time
	End   time.Time
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("start date %s must be before the end date %s",
		e.Start.Format(dateFormat), e.End.Format(dateFormat))
}

// InvalidCurrencyError reports requested currencies that are not part of the
// provider's known set.
type InvalidCurrencyError struct {
	Invalid []string
	Known   []string
}

func (e *InvalidCurrencyError) Error() string {
	return fmt.Sprintf("invalid currencies: %s (valid: %s)",
		strings.Join(e.Invalid, ", "), strings.Join(e.Known, ", "))
}

// SourceError carries an error payload reported by the rate provider.
type SourceError struct {
	Date    time.Time
	Base    string
	Message string
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("provider error for %s (base %s): %s",
		e.Date.Format(dateFormat), e.Base, e.Message)
}

// TransportError wraps a network or protocol failure while talking to the
// rate provider.
type TransportError struct {
	Date time.Time
	Base string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch rates for %s (base %s): %v",
		e.Date.Format(dateFormat), e.Base, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DateNotInCacheError reports a requested date outside the cached range.
// Repopulating the cache with the wider range resolves it.
type DateNotInCacheError struct {
	Date time.Time
	Min  time.Time
	Max  time.Time
}

func (e *DateNotInCacheError) Error() string {
	return fmt.Sprintf("date %s is not in the cache (cached range %s to %s); repopulate with -p to cover it",
		e.Date.Format(dateFormat), e.Min.Format(dateFormat), e.Max.Format(dateFormat))
}
