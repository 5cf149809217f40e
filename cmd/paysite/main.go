package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysite/internal/clock"
	"github.com/smallbiznis/paysite/internal/config"
	"github.com/smallbiznis/paysite/internal/customize"
	"github.com/smallbiznis/paysite/internal/migration"
	"github.com/smallbiznis/paysite/internal/observability"
	"github.com/smallbiznis/paysite/internal/payment"
	"github.com/smallbiznis/paysite/internal/server"
	"github.com/smallbiznis/paysite/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Payment flow
		customize.Module,
		payment.Module,
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
