package salesfile

import "go.uber.org/fx"

var Module = fx.Module("salesfile.module",
	fx.Provide(NewService),
)

var Gateway = fx.Module("salesfile.gateway",
	fx.Invoke(RegisterRoutes),
)
