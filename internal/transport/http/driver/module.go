package driver

import "go.uber.org/fx"

// Module provides the driver handler and mounts its routes.
var Module = fx.Module("http_driver",
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)
