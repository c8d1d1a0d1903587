package watermark

import (
	"github.com/attribly/convrelay/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("watermark",
	fx.Provide(Provide),
)

func Provide(cfg config.Config, log *zap.Logger) *Store {
	return NewStore(cfg.WatermarkFile, log)
}
