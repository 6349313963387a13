package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"salescamp-controlplane/internal/config"
	"salescamp-controlplane/internal/httpapi"
	"salescamp-controlplane/internal/logger"
	"salescamp-controlplane/internal/server"
	"salescamp-controlplane/pkg/asynq"
	"salescamp-controlplane/pkg/db"
	"salescamp-controlplane/pkg/health"
	"salescamp-controlplane/pkg/minio"
	"salescamp-controlplane/pkg/redis"
	"salescamp-controlplane/services/notify"
	"salescamp-controlplane/services/rule"
	"salescamp-controlplane/services/salesfile"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		minio.Client,
		asynq.Client,
		asynq.Server,
		health.Module,
		httpapi.Module,
		server.Module,

		fx.Provide(newSnowflakeNode),

		notify.Module,
		rule.ExtractorModule,
		rule.Module,
		rule.Gateway,
		rule.Worker,
		salesfile.Module,
		salesfile.Gateway,
	)

	app.Run()
}

func newSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
