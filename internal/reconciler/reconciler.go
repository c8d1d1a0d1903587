// Package reconciler drives the per-subscriber trial state machine:
// absent -> pending -> confirmed or cancelled.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/attribly/convrelay/internal/clock"
	eventdomain "github.com/attribly/convrelay/internal/event/domain"
	ledgerdomain "github.com/attribly/convrelay/internal/ledger/domain"
	"github.com/attribly/convrelay/internal/notifier"
	"github.com/attribly/convrelay/internal/observability/metrics"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("reconciler: missing dependency")

// Config controls the delayed-confirmation policy.
type Config struct {
	GracePeriod time.Duration
}

func (c Config) withDefaults() Config {
	if c.GracePeriod <= 0 {
		c.GracePeriod = time.Hour
	}
	return c
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     ledgerdomain.Repository
	Notifier notifier.Sender
	GenID    *snowflake.Node
	Clock    clock.Clock
	Metrics  *metrics.Pipeline `optional:"true"`
	Config   Config            `optional:"true"`
}

// Reconciler is the only writer of the pending-trial ledger.
type Reconciler struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      Config
	repo     ledgerdomain.Repository
	notifier notifier.Sender
	genID    *snowflake.Node
	clock    clock.Clock
	metrics  *metrics.Pipeline
}

func New(p Params) (*Reconciler, error) {
	if p.DB == nil || p.Log == nil || p.Repo == nil || p.Notifier == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Reconciler{
		db:       p.DB,
		log:      p.Log.Named("reconciler"),
		cfg:      p.Config.withDefaults(),
		repo:     p.Repo,
		notifier: p.Notifier,
		genID:    p.GenID,
		clock:    p.Clock,
		metrics:  p.Metrics,
	}, nil
}

// Reconcile processes one fetched batch. Failures on individual events are
// logged and the rest of the batch continues; the aggregated error is
// returned for cycle-level reporting only.
//
// Cancellations are applied before insertions so a trial started and
// cancelled within the same batch never becomes a lingering pending record.
func (r *Reconciler) Reconcile(ctx context.Context, batch []eventdomain.Event) error {
	classified := eventdomain.Classify(batch)

	cancelled := make(map[string]struct{}, len(classified.TrialsCancelled))
	for _, ev := range classified.TrialsCancelled {
		cancelled[ev.SubscriberID] = struct{}{}
	}

	var errs []error
	errs = append(errs, r.notifyEach(ctx, classified.Installs, notifier.StatusInstall)...)
	errs = append(errs, r.notifyEach(ctx, classified.Activations, notifier.StatusTrialConverted)...)
	errs = append(errs, r.cancelTrials(ctx, classified.TrialsCancelled)...)
	errs = append(errs, r.insertTrials(ctx, classified.TrialsStarted, cancelled)...)
	if err := r.ConfirmMatured(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (r *Reconciler) incNotification(status notifier.Status, outcome string) {
	if r.metrics != nil {
		r.metrics.IncNotification(string(status), outcome)
	}
}

// notifyEach sends one unconditional postback per event; these categories
// need no ledger interaction.
func (r *Reconciler) notifyEach(ctx context.Context, events []eventdomain.Event, status notifier.Status) []error {
	var errs []error
	for _, ev := range events {
		if err := r.notifier.Send(ctx, ev.SubscriberID, status); err != nil {
			r.log.Error("notification failed",
				zap.String("subscriber_id", ev.SubscriberID),
				zap.String("status", string(status)),
				zap.Error(err),
			)
			r.incNotification(status, "error")
			errs = append(errs, fmt.Errorf("notify %s %s: %w", status, ev.SubscriberID, err))
			continue
		}
		r.incNotification(status, "ok")
	}
	return errs
}

func (r *Reconciler) cancelTrials(ctx context.Context, events []eventdomain.Event) []error {
	var errs []error
	for _, ev := range events {
		if err := r.repo.DeleteBySubscriber(ctx, r.db, ev.SubscriberID); err != nil {
			r.log.Error("cancel pending trial failed",
				zap.String("subscriber_id", ev.SubscriberID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("cancel trial %s: %w", ev.SubscriberID, err))
			continue
		}
		if r.metrics != nil {
			r.metrics.IncTrialCancelled()
		}
		r.log.Debug("pending trial cancelled", zap.String("subscriber_id", ev.SubscriberID))
	}
	return errs
}

// insertTrials records new pending trials. A subscriber cancelled within the
// same batch is never inserted: the same-cycle cancel wins.
func (r *Reconciler) insertTrials(ctx context.Context, events []eventdomain.Event, cancelled map[string]struct{}) []error {
	var errs []error
	for _, ev := range events {
		if _, ok := cancelled[ev.SubscriberID]; ok {
			r.log.Debug("trial cancelled within the same batch, not recording",
				zap.String("subscriber_id", ev.SubscriberID),
			)
			continue
		}
		rec := &ledgerdomain.PendingTrial{
			ID:           r.genID.Generate(),
			Date:         r.clock.Now(),
			EventTime:    ev.EventTime,
			EventName:    string(ev.EventName),
			SubscriberID: ev.SubscriberID,
		}
		inserted, err := r.repo.InsertIfAbsent(ctx, r.db, rec)
		if err != nil {
			// The source row already passed the watermark, so a failed
			// insert is not re-observable; log the full payload for
			// manual recovery.
			r.log.Error("insert pending trial failed",
				zap.String("subscriber_id", ev.SubscriberID),
				zap.Time("event_time", ev.EventTime),
				zap.String("event_name", string(ev.EventName)),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("insert trial %s: %w", ev.SubscriberID, err))
			continue
		}
		if !inserted {
			r.log.Warn("pending trial already recorded, skipping",
				zap.String("subscriber_id", ev.SubscriberID),
			)
			continue
		}
		r.log.Debug("pending trial recorded", zap.String("subscriber_id", ev.SubscriberID))
	}
	return errs
}

// ConfirmMatured confirms every pending trial whose grace period elapsed
// without a cancellation. The ledger row is deleted only after the postback
// succeeds; on failure it stays pending and is reconsidered next cycle.
func (r *Reconciler) ConfirmMatured(ctx context.Context) error {
	olderThan := r.clock.Now().Add(-r.cfg.GracePeriod)
	matured, err := r.repo.ScanMatured(ctx, r.db, olderThan)
	if err != nil {
		return fmt.Errorf("scan matured trials: %w", err)
	}

	var errs []error
	for _, rec := range matured {
		if err := r.notifier.Send(ctx, rec.SubscriberID, notifier.StatusTrialStarted); err != nil {
			r.log.Error("trial confirmation failed, keeping pending record",
				zap.String("subscriber_id", rec.SubscriberID),
				zap.Error(err),
			)
			r.incNotification(notifier.StatusTrialStarted, "error")
			errs = append(errs, fmt.Errorf("confirm trial %s: %w", rec.SubscriberID, err))
			continue
		}
		r.incNotification(notifier.StatusTrialStarted, "ok")

		if err := r.repo.DeleteBySubscriber(ctx, r.db, rec.SubscriberID); err != nil {
			// The postback went out but the row stayed; the next cycle
			// re-confirms it (at-least-once, idempotent downstream).
			r.log.Error("delete confirmed trial failed",
				zap.String("subscriber_id", rec.SubscriberID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("delete confirmed trial %s: %w", rec.SubscriberID, err))
			continue
		}
		if r.metrics != nil {
			r.metrics.IncTrialConfirmed()
		}
		r.log.Info("trial confirmed", zap.String("subscriber_id", rec.SubscriberID))
	}
	return errors.Join(errs...)
}
