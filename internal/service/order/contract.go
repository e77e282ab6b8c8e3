package order

import (
	"context"

	"github.com/Additional-Code/hatch/internal/entity"
	repo "github.com/Additional-Code/hatch/internal/repository/order"
)

// Repository is the order persistence the service depends on.
type Repository interface {
	Create(ctx context.Context, order *entity.Order, format repo.NumberFormatter) error
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	GetFromPrimary(ctx context.Context, id int64) (*entity.Order, error)
	List(ctx context.Context, f repo.ListFilter) ([]*entity.Order, error)
	UpdateStatus(ctx context.Context, change repo.StatusChange) error
	History(ctx context.Context, orderID int64) ([]entity.OrderStatusLog, error)
}

// DriverLookup resolves drivers for assignment.
type DriverLookup interface {
	GetByID(ctx context.Context, id int64) (*entity.Driver, error)
}

// MenuLookup resolves live menu prices for the price check.
type MenuLookup interface {
	GetByID(ctx context.Context, id int64) (*entity.MenuItem, error)
}
