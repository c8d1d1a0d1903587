package notifier

import (
	"github.com/attribly/convrelay/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notifier",
	fx.Provide(ProvideSender),
)

func ProvideSender(cfg config.Config, log *zap.Logger) (Sender, error) {
	return New(Config{
		BaseURL: cfg.PostbackBaseURL,
		Retries: cfg.Retries,
		Delay:   cfg.RetryDelay,
		Timeout: cfg.RequestTimeout,
	}, log)
}
