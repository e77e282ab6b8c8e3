package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/internal/cache"
	"github.com/Additional-Code/hatch/internal/config"
	"github.com/Additional-Code/hatch/internal/database"
	"github.com/Additional-Code/hatch/internal/domain/status"
	"github.com/Additional-Code/hatch/internal/entity"
	"github.com/Additional-Code/hatch/internal/notify"
	repo "github.com/Additional-Code/hatch/internal/repository/order"
	"github.com/Additional-Code/hatch/pkg/errorbank"
)

var (
	serviceTracer = otel.Tracer("github.com/Additional-Code/hatch/service/order")
	serviceMeter  = otel.Meter("github.com/Additional-Code/hatch/service/order")
)

// Service encapsulates business logic around orders.
type Service struct {
	repo      Repository
	drivers   DriverLookup
	menu      MenuLookup
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher notify.Publisher
	orders    config.Orders
	now       func() time.Time

	createdCounter    metric.Int64Counter
	transitionCounter metric.Int64Counter
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository Repository
	Drivers    DriverLookup
	Menu       MenuLookup
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  notify.Publisher
	Clock      func() time.Time `optional:"true"`
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := p.Clock
	if now == nil {
		now = time.Now
	}

	s := &Service{
		repo:      p.Repository,
		drivers:   p.Drivers,
		menu:      p.Menu,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    logger,
		publisher: p.Publisher,
		orders:    p.Config.Orders,
		now:       now,
	}

	var err error
	if s.createdCounter, err = serviceMeter.Int64Counter("orders.created",
		metric.WithDescription("Orders accepted by the service")); err != nil {
		logger.Warn("create orders.created counter", zap.Error(err))
	}
	if s.transitionCounter, err = serviceMeter.Int64Counter("orders.status_transitions",
		metric.WithDescription("Applied order status updates by target status")); err != nil {
		logger.Warn("create orders.status_transitions counter", zap.Error(err))
	}

	return s
}

// FormatNumber renders a sequence value as the human-facing order number.
func (s *Service) FormatNumber(seq int64) string {
	return fmt.Sprintf("%s-%0*d", s.orders.NumberPrefix, s.orders.NumberWidth, seq)
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	var cached entity.Order
	if err := cache.GetJSON(ctx, s.cache, cache.OrderKey(id), &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found", errorbank.WithDetail("order_id", id))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, s.internal("failed to load order", err, zap.Int64("id", id))
	}

	s.storeInCache(ctx, order)
	return order, nil
}

// ListInput is the raw, unvalidated listing query.
type ListInput struct {
	Statuses    []string
	OrderNumber string
	DriverID    *int64
	Limit       int
}

// List returns orders matching in, newest first.
func (s *Service) List(ctx context.Context, in ListInput) ([]*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()

	filter := repo.ListFilter{
		OrderNumber: in.OrderNumber,
		DriverID:    in.DriverID,
		Limit:       in.Limit,
	}
	for _, raw := range in.Statuses {
		st, err := status.ParseOrder(raw)
		if err != nil {
			return nil, unknownStatus(err)
		}
		filter.Statuses = append(filter.Statuses, st)
	}
	if in.Limit < 0 {
		return nil, errorbank.InvalidArgument("limit must not be negative", errorbank.WithDetail("limit", in.Limit))
	}

	orders, err := s.repo.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, s.internal("failed to list orders", err)
	}
	return orders, nil
}

// History returns the status log of an existing order.
func (s *Service) History(ctx context.Context, id int64) ([]entity.OrderStatusLog, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.History", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.repo.History(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, s.internal("failed to load order history", err, zap.Int64("id", id))
	}
	return entries, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) {
	if order == nil {
		return
	}
	if err := cache.SetJSON(ctx, s.cache, cache.OrderKey(order.ID), order, s.cacheTTL); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}
}

func (s *Service) evict(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.OrderKey(id)); err != nil {
		s.logger.Warn("orders cache delete failed", zap.Int64("id", id), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, id int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, notify.OrderUpdate(id)); err != nil {
		s.logger.Error("publish order update", zap.Int64("id", id), zap.Error(err))
	}
}

func (s *Service) internal(msg string, err error, fields ...zap.Field) error {
	return database.Internal(s.logger, msg, err, fields...)
}

func unknownStatus(err error) error {
	var unknown *status.UnknownError
	if errors.As(err, &unknown) {
		return errorbank.InvalidArgument("unrecognised status",
			errorbank.WithCause(err),
			errorbank.WithDetail("status", unknown.Input),
			errorbank.WithDetail("accepted", unknown.Accepted),
		)
	}
	return errorbank.InvalidArgument("unrecognised status", errorbank.WithCause(err))
}
