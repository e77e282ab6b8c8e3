package order

import "go.uber.org/fx"

// Module provides the order handler and mounts its routes.
var Module = fx.Module("http_order",
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)
