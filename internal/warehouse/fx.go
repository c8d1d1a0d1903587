package warehouse

import (
	"context"

	"github.com/attribly/convrelay/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("warehouse",
	fx.Provide(ProvideWarehouse),
	fx.Provide(NewFetcher),
)

// ProvideWarehouse opens the ClickHouse connection at startup and guarantees
// release on shutdown.
func ProvideWarehouse(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Warehouse, error) {
	ch, err := NewClickHouse(cfg, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return ch.Close()
		},
	})
	return ch, nil
}
