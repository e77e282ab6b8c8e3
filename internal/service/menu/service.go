package menu

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/internal/cache"
	"github.com/Additional-Code/hatch/internal/config"
	"github.com/Additional-Code/hatch/internal/entity"
	repo "github.com/Additional-Code/hatch/internal/repository/menu"
	"github.com/Additional-Code/hatch/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/hatch/service/menu")

// Repository is the menu persistence the service depends on.
type Repository interface {
	List(ctx context.Context, categoryID int64, availableOnly bool) ([]*entity.MenuItem, error)
	GetByID(ctx context.Context, id int64) (*entity.MenuItem, error)
}

// Filter narrows a menu listing.
type Filter struct {
	CategoryID    int64
	AvailableOnly bool
}

// Service serves menu reads.
type Service struct {
	repo     Repository
	cache    cache.Store
	cacheTTL time.Duration
	logger   *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: p.Repository, cache: p.Cache, cacheTTL: p.Config.Cache.DefaultTTL, logger: logger}
}

// List returns menu items grouped by category order.
func (s *Service) List(ctx context.Context, f Filter) ([]*entity.MenuItem, error) {
	ctx, span := serviceTracer.Start(ctx, "MenuService.List", trace.WithAttributes(
		attribute.Int64("menu.category_id", f.CategoryID),
		attribute.Bool("menu.available_only", f.AvailableOnly),
	))
	defer span.End()

	if f.CategoryID < 0 {
		return nil, errorbank.InvalidArgument("categoryId must be positive", errorbank.WithDetail("categoryId", f.CategoryID))
	}

	key := cache.MenuKey(f.CategoryID, f.AvailableOnly)
	var cached []*entity.MenuItem
	if err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("menu cache read failed", zap.String("key", key), zap.Error(err))
	}

	items, err := s.repo.List(ctx, f.CategoryID, f.AvailableOnly)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		s.logger.Error("failed to list menu", zap.Error(err))
		return nil, errorbank.Internal("failed to list menu", errorbank.WithCause(err))
	}

	if err := cache.SetJSON(ctx, s.cache, key, items, s.cacheTTL); err != nil {
		s.logger.Warn("menu cache write failed", zap.String("key", key), zap.Error(err))
	}
	return items, nil
}

// Get returns one menu item.
func (s *Service) Get(ctx context.Context, id int64) (*entity.MenuItem, error) {
	ctx, span := serviceTracer.Start(ctx, "MenuService.Get", trace.WithAttributes(attribute.Int64("menu.item_id", id)))
	defer span.End()

	item, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errorbank.NotFound("menu item not found", errorbank.WithDetail("menu_item_id", id))
	}
	if err != nil {
		span.RecordError(err)
		s.logger.Error("failed to load menu item", zap.Int64("id", id), zap.Error(err))
		return nil, errorbank.Internal("failed to load menu item", errorbank.WithCause(err))
	}
	return item, nil
}
