package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/pagehub/billing/internal/clock"
	"github.com/pagehub/billing/internal/config"
	"github.com/pagehub/billing/internal/logger"
	"github.com/pagehub/billing/internal/migration"
	"github.com/pagehub/billing/internal/observability/tracing"
	"github.com/pagehub/billing/internal/server"
	"github.com/pagehub/billing/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		tracing.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
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
