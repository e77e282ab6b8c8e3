package driver

import (
	"go.uber.org/fx"

	repo "github.com/Additional-Code/hatch/internal/repository/driver"
)

// Module provides the driver service to Fx.
var Module = fx.Provide(
	NewService,
	func(r *repo.Repository) Repository { return r },
)
