package httpapi

import (
	"net/http"

	"salescamp-controlplane/internal/config"
	"salescamp-controlplane/pkg/health"
	"salescamp-controlplane/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("httpapi",
	fx.Provide(ProvideEngine),
	fx.Invoke(registerHealthRoutes),
)

// ProvideEngine constructs the gin engine shared by all service gateways.
func ProvideEngine(cfg *config.Config) (*gin.Engine, http.Handler) {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.Error())

	return engine, engine
}

func registerHealthRoutes(engine *gin.Engine, h health.HealthService) {
	engine.GET("/healthz", h.Liveness)
	engine.GET("/readyz", h.Readiness)
}
