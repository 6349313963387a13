package rule

import (
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("rule.module",
	fx.Provide(
		NewRepository,
		NewService,
	),
	fx.Invoke(migrate),
)

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(&RuleRecord{})
}

var Gateway = fx.Module("rule.gateway",
	fx.Invoke(RegisterRoutes),
)

var Worker = fx.Module("rule.worker",
	fx.Invoke(registerTaskHandlers),
)

func registerTaskHandlers(mux *asynq.ServeMux, svc *Service) {
	mux.HandleFunc(TaskRuleExtract, HandleExtractTask(svc))
}
