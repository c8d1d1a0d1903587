package scheduler

import (
	"context"

	"github.com/attribly/convrelay/internal/config"
	"github.com/attribly/convrelay/internal/reconciler"
	"github.com/attribly/convrelay/internal/warehouse"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(
		ProvideConfig,
		func(f *warehouse.Fetcher) DeltaFetcher { return f },
		func(r *reconciler.Reconciler) Reconciler { return r },
		New,
	),
	fx.Invoke(Run),
)

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:  cfg.RunInterval,
		CycleTimeout: cfg.CycleTimeout,
	}
}

// Run starts the cycle driver. Without a run interval the process performs a
// single cycle and exits 0, leaving the cadence to the external trigger.
func Run(lc fx.Lifecycle, shutdowner fx.Shutdowner, log *zap.Logger, sched *Scheduler, cfg Config) {
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if cfg.RunInterval > 0 {
					sched.RunForever(runCtx)
					return
				}
				if err := sched.RunOnce(runCtx); err != nil {
					log.Error("cycle failed", zap.Error(err))
				}
				// Exit cleanly on failure too; the external trigger keeps
				// the cadence.
				if err := shutdowner.Shutdown(); err != nil {
					log.Error("shutdown failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
