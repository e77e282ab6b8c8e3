package order

import (
	"go.uber.org/fx"

	driverrepo "github.com/Additional-Code/hatch/internal/repository/driver"
	menurepo "github.com/Additional-Code/hatch/internal/repository/menu"
	repo "github.com/Additional-Code/hatch/internal/repository/order"
)

// Module provides the order service to Fx.
var Module = fx.Options(
	fx.Provide(
		NewService,
		func(r *repo.Repository) Repository { return r },
		func(r *driverrepo.Repository) DriverLookup { return r },
		func(r *menurepo.Repository) MenuLookup { return r },
	),
)
