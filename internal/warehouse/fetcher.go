package warehouse

import (
	"context"
	"fmt"

	eventdomain "github.com/attribly/convrelay/internal/event/domain"
	"github.com/attribly/convrelay/internal/observability/metrics"
	"github.com/attribly/convrelay/internal/watermark"
	"go.uber.org/zap"
)

// Fetcher computes the incremental delta of new rows since the last poll.
// The watermark is the sole deduplication mechanism against the warehouse;
// its correctness assumes warehouse rows are append-only.
type Fetcher struct {
	wh      Warehouse
	store   *watermark.Store
	log     *zap.Logger
	metrics *metrics.Pipeline
}

func NewFetcher(wh Warehouse, store *watermark.Store, log *zap.Logger, m *metrics.Pipeline) *Fetcher {
	return &Fetcher{
		wh:      wh,
		store:   store,
		log:     log.Named("fetcher"),
		metrics: m,
	}
}

// FetchDelta returns the rows recorded since the last successful poll and
// advances the watermark. An empty batch leaves the watermark untouched.
//
// A warehouse truncation (current total below the watermark) is recovered
// locally: the watermark resets to the current total and the cycle processes
// zero events.
func (f *Fetcher) FetchDelta(ctx context.Context) ([]eventdomain.Event, error) {
	prev, err := f.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load watermark: %w", err)
	}

	total, err := f.wh.CountEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	delta := total - prev
	switch {
	case delta == 0:
		f.log.Debug("no new events", zap.Int64("watermark", prev))
		return nil, nil
	case delta < 0:
		f.log.Warn("warehouse row count below watermark, resetting",
			zap.Int64("watermark", prev),
			zap.Int64("current_total", total),
		)
		if err := f.store.Save(total); err != nil {
			return nil, fmt.Errorf("reset watermark: %w", err)
		}
		if f.metrics != nil {
			f.metrics.SetWatermark(total)
		}
		return nil, nil
	}

	events, err := f.wh.FetchNewest(ctx, delta)
	if err != nil {
		// No watermark advance on a failed fetch: the next cycle
		// re-derives the same delta.
		return nil, fmt.Errorf("fetch %d newest events: %w", delta, err)
	}

	if err := f.store.Save(total); err != nil {
		return nil, fmt.Errorf("advance watermark: %w", err)
	}
	if f.metrics != nil {
		f.metrics.SetWatermark(total)
		for name, n := range countByName(events) {
			f.metrics.AddFetched(name, n)
		}
	}

	f.log.Info("fetched new events",
		zap.Int64("delta", delta),
		zap.Int64("watermark", total),
	)
	return events, nil
}

func countByName(events []eventdomain.Event) map[string]int {
	counts := make(map[string]int)
	for _, ev := range events {
		counts[string(ev.EventName)]++
	}
	return counts
}
