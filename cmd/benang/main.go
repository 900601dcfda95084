package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/benangcapital/benang/internal/clock"
	"github.com/benangcapital/benang/internal/config"
	"github.com/benangcapital/benang/internal/migration"
	"github.com/benangcapital/benang/internal/observability"
	"github.com/benangcapital/benang/internal/scheduler"
	"github.com/benangcapital/benang/internal/server"
	"github.com/benangcapital/benang/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
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
