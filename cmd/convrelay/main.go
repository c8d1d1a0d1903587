package main

import (
	"github.com/attribly/convrelay/internal/clock"
	"github.com/attribly/convrelay/internal/config"
	"github.com/attribly/convrelay/internal/ledger"
	"github.com/attribly/convrelay/internal/notifier"
	"github.com/attribly/convrelay/internal/observability"
	"github.com/attribly/convrelay/internal/reconciler"
	"github.com/attribly/convrelay/internal/scheduler"
	"github.com/attribly/convrelay/internal/warehouse"
	"github.com/attribly/convrelay/internal/watermark"
	"github.com/attribly/convrelay/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		watermark.Module,
		warehouse.Module,
		ledger.Module,
		notifier.Module,
		reconciler.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
