package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Repository owns pending-trial rows. Every operation runs in its own short
// session; no transaction spans multiple calls.
type Repository interface {
	// InsertIfAbsent inserts the record unless a row with the same
	// subscriber already exists. Returns whether the insertion occurred;
	// a duplicate is not an error.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, rec *PendingTrial) (bool, error)

	// DeleteBySubscriber removes the record if present. Deleting an absent
	// key is a no-op: cancellations may arrive for trials never observed,
	// already confirmed, or delivered out of order.
	DeleteBySubscriber(ctx context.Context, db *gorm.DB, subscriberID string) error

	// ScanMatured returns trial-started records whose event_time is at or
	// before olderThan. Matured rows are not deleted by the scan; deletion
	// happens only after a successful notification.
	ScanMatured(ctx context.Context, db *gorm.DB, olderThan time.Time) ([]PendingTrial, error)
}
