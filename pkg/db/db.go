// Package db opens the gorm connection backing the pending-trial ledger.
package db

import (
	"fmt"

	"github.com/attribly/convrelay/internal/config"
	ledgerdomain "github.com/attribly/convrelay/internal/ledger/domain"
	"github.com/attribly/convrelay/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("db",
	fx.Provide(Open),
	fx.Invoke(Migrate),
)

func Open(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialect, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialect, &gorm.Config{
		Logger: logger.NewGormLogger(log, logger.DefaultGormLoggerConfig()),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBType, err)
	}
	return conn, nil
}

// Migrate creates the ledger table when it does not exist yet.
func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(&ledgerdomain.PendingTrial{})
}
