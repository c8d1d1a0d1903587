// Package scheduler drives the fetch -> classify -> reconcile -> notify cycle.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/attribly/convrelay/internal/clock"
	eventdomain "github.com/attribly/convrelay/internal/event/domain"
	"github.com/attribly/convrelay/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

// DeltaFetcher yields the rows recorded since the last successful poll.
type DeltaFetcher interface {
	FetchDelta(ctx context.Context) ([]eventdomain.Event, error)
}

// Reconciler applies one batch to the pending-trial ledger and sends the
// resulting notifications.
type Reconciler interface {
	Reconcile(ctx context.Context, batch []eventdomain.Event) error
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Fetcher    DeltaFetcher
	Reconciler Reconciler
	Clock      clock.Clock
	Metrics    *metrics.Pipeline `optional:"true"`
	Config     Config            `optional:"true"`
}

// Scheduler runs cycles sequentially; cycles never overlap.
type Scheduler struct {
	log        *zap.Logger
	fetcher    DeltaFetcher
	reconciler Reconciler
	clock      clock.Clock
	metrics    *metrics.Pipeline
	cfg        Config
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Fetcher == nil || p.Reconciler == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler"),
		fetcher:    p.Fetcher,
		reconciler: p.Reconciler,
		clock:      p.Clock,
		metrics:    p.Metrics,
		cfg:        p.Config.withDefaults(),
	}, nil
}

// RunOnce executes one complete cycle. Failures surface as log entries and
// the returned error; callers exit cleanly either way so the external
// trigger keeps the cadence.
func (s *Scheduler) RunOnce(parent context.Context) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.CycleTimeout)
	defer cancel()

	events, err := s.fetcher.FetchDelta(ctx)
	if err != nil {
		s.incCycle("fetch_error")
		s.log.Error("cycle aborted, watermark unchanged", zap.Error(err))
		return fmt.Errorf("fetch delta: %w", err)
	}
	if len(events) == 0 {
		s.incCycle("empty")
		s.observeDuration(s.clock.Now().Sub(start))
		s.log.Debug("cycle complete, no new events")
		return nil
	}

	err = s.reconciler.Reconcile(ctx, events)
	s.observeDuration(s.clock.Now().Sub(start))
	if err != nil {
		s.incCycle("partial")
		s.log.Error("cycle finished with failed events", zap.Error(err))
		return err
	}

	s.incCycle("ok")
	s.log.Info("cycle complete",
		zap.Int("events", len(events)),
		zap.Duration("took", s.clock.Now().Sub(start)),
	)
	return nil
}

// RunForever runs cycles at the configured interval until the context is
// cancelled. The interval is assumed longer than one cycle's worst case.
func (s *Scheduler) RunForever(ctx context.Context) {
	if s.cfg.RunInterval <= 0 {
		s.log.Warn("run interval not set, refusing to loop")
		return
	}

	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Error("cycle failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) incCycle(outcome string) {
	if s.metrics != nil {
		s.metrics.IncCycle(outcome)
	}
}

func (s *Scheduler) observeDuration(took time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveCycleDuration(took)
	}
}
