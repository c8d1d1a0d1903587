package reconciler

import (
	"github.com/attribly/convrelay/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("reconciler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
)

func ProvideConfig(cfg config.Config) Config {
	return Config{GracePeriod: cfg.GracePeriod}
}
