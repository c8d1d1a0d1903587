package repository

import (
	"context"
	"time"

	eventdomain "github.com/attribly/convrelay/internal/event/domain"
	ledgerdomain "github.com/attribly/convrelay/internal/ledger/domain"
	"github.com/attribly/convrelay/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() ledgerdomain.Repository {
	return &repo{}
}

func (r *repo) InsertIfAbsent(ctx context.Context, conn *gorm.DB, rec *ledgerdomain.PendingTrial) (bool, error) {
	var existing ledgerdomain.PendingTrial
	err := conn.WithContext(ctx).Raw(
		`SELECT id, af_sub1 FROM pending_trials WHERE af_sub1 = ?`,
		rec.SubscriberID,
	).Scan(&existing).Error
	if err != nil {
		return false, err
	}
	if existing.ID != 0 {
		return false, nil
	}

	err = conn.WithContext(ctx).Exec(
		`INSERT INTO pending_trials (id, date, event_time, event_name, af_sub1)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Date,
		rec.EventTime,
		rec.EventName,
		rec.SubscriberID,
	).Error
	if err != nil {
		// A row written between the check and the insert counts as absent
		// insertion, not a failure.
		if db.IsDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repo) DeleteBySubscriber(ctx context.Context, conn *gorm.DB, subscriberID string) error {
	return conn.WithContext(ctx).Exec(
		`DELETE FROM pending_trials WHERE af_sub1 = ?`,
		subscriberID,
	).Error
}

func (r *repo) ScanMatured(ctx context.Context, conn *gorm.DB, olderThan time.Time) ([]ledgerdomain.PendingTrial, error) {
	var out []ledgerdomain.PendingTrial
	err := conn.WithContext(ctx).Raw(
		`SELECT id, date, event_time, event_name, af_sub1 FROM pending_trials
		 WHERE event_name = ? AND event_time <= ?`,
		string(eventdomain.EventTrialStarted),
		olderThan,
	).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
