package payment

import (
	"go.uber.org/fx"

	orderrepo "github.com/Additional-Code/hatch/internal/repository/order"
	repo "github.com/Additional-Code/hatch/internal/repository/payment"
)

// Module provides the payment service to Fx.
var Module = fx.Provide(
	NewService,
	func(r *repo.Repository) Recorder { return r },
	func(r *orderrepo.Repository) OrderReader { return r },
)
