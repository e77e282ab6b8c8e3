package driver

import "go.uber.org/fx"

// Module provides the driver repository to Fx.
var Module = fx.Provide(NewRepository)
