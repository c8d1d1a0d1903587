package observability

import (
	"github.com/attribly/convrelay/internal/config"
	"github.com/attribly/convrelay/internal/observability/logger"
	"github.com/attribly/convrelay/internal/observability/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		provideLoggerConfig,
		logger.New,
		provideMetrics,
	),
	fx.Invoke(startMetricsServer),
)

func startMetricsServer(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) {
	metrics.StartServer(lc, cfg.MetricsAddr, log.Named("metrics"))
}

func provideLoggerConfig(cfg Config) logger.Config {
	return logger.Config{
		ServiceName:         cfg.ServiceName,
		Environment:         cfg.Environment,
		Version:             cfg.Version,
		Level:               cfg.LogLevel,
		Format:              cfg.LogFormat,
		IncludeCaller:       true,
		IncludeStackOnError: cfg.Debug(),
	}
}

func provideMetrics() (*metrics.Pipeline, error) {
	return metrics.New(prometheus.DefaultRegisterer)
}
