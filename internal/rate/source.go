package rate

import (
	"context"
	"time"
)

// Source provides rate snapshots from the remote provider. Implementations
// return *SourceError when the provider reports an error payload and
// *TransportError on network or protocol failure.
type Source interface {
	Fetch(ctx context.Context, date time.Time, base string) (*Snapshot, error)
}
