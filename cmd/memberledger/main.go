package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/memberledger/internal/clock"
	"github.com/smallbiznis/memberledger/internal/config"
	"github.com/smallbiznis/memberledger/internal/migration"
	"github.com/smallbiznis/memberledger/internal/observability"
	"github.com/smallbiznis/memberledger/internal/server"
	"github.com/smallbiznis/memberledger/pkg/db"
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

		// Webhook ingestion, billing entities, directory and audit
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) *snowflake.Node {
	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		panic(err)
	}
	return node
}
