package menu

import (
	"go.uber.org/fx"

	repo "github.com/Additional-Code/hatch/internal/repository/menu"
)

// Module provides the menu service to Fx.
var Module = fx.Provide(
	NewService,
	func(r *repo.Repository) Repository { return r },
)
