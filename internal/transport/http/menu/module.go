package menu

import "go.uber.org/fx"

// Module provides the menu handler and mounts its routes.
var Module = fx.Module("http_menu",
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)
