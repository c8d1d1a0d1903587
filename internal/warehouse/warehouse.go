// Package warehouse reads attribution events from the analytics warehouse
// and computes the per-cycle delta against the row-count watermark.
package warehouse

import (
	"context"

	eventdomain "github.com/attribly/convrelay/internal/event/domain"
)

// Warehouse exposes the two read-only queries the pipeline needs.
type Warehouse interface {
	// CountEvents returns the total number of qualifying rows.
	CountEvents(ctx context.Context) (int64, error)

	// FetchNewest returns the newest limit qualifying rows ordered by
	// descending event time.
	FetchNewest(ctx context.Context, limit int64) ([]eventdomain.Event, error)
}
