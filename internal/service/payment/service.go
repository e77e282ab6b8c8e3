package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/internal/cache"
	"github.com/Additional-Code/hatch/internal/config"
	"github.com/Additional-Code/hatch/internal/database"
	"github.com/Additional-Code/hatch/internal/domain/status"
	"github.com/Additional-Code/hatch/internal/entity"
	"github.com/Additional-Code/hatch/internal/notify"
	"github.com/Additional-Code/hatch/internal/payment"
	orderrepo "github.com/Additional-Code/hatch/internal/repository/order"
	repo "github.com/Additional-Code/hatch/internal/repository/payment"
	"github.com/Additional-Code/hatch/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/hatch/service/payment")

// Recorder persists payment attempts.
type Recorder interface {
	Record(ctx context.Context, p *entity.Payment) error
}

// OrderReader loads the order being paid for.
type OrderReader interface {
	GetFromPrimary(ctx context.Context, id int64) (*entity.Order, error)
}

// ChargeInput is a request to pay an order's total.
type ChargeInput struct {
	Currency string
	Token    string
}

// Service takes card payments for orders. It records the outcome on the
// order's payment status and never touches the order status.
type Service struct {
	gateway   payment.Gateway
	recorder  Recorder
	orders    OrderReader
	cache     cache.Store
	publisher notify.Publisher
	currency  string
	logger    *zap.Logger
	now       func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Gateway   payment.Gateway
	Recorder  Recorder
	Orders    OrderReader
	Cache     cache.Store
	Publisher notify.Publisher
	Config    config.Config
	Logger    *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		gateway:   p.Gateway,
		recorder:  p.Recorder,
		orders:    p.Orders,
		cache:     p.Cache,
		publisher: p.Publisher,
		currency:  p.Config.Payment.Currency,
		logger:    logger,
		now:       time.Now,
	}
}

// Charge takes the order total from the card behind in.Token. A declined card
// is recorded and returned without error.
func (s *Service) Charge(ctx context.Context, orderID int64, in ChargeInput) (*entity.Payment, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.Charge", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	token := strings.TrimSpace(in.Token)
	if token == "" {
		return nil, errorbank.InvalidArgument("payment token is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.currency
	}
	if len(currency) != 3 {
		return nil, errorbank.InvalidArgument("currency must be a three letter code", errorbank.WithDetail("currency", in.Currency))
	}

	order, err := s.orders.GetFromPrimary(ctx, orderID)
	if errors.Is(err, orderrepo.ErrNotFound) {
		return nil, errorbank.NotFound("order not found", errorbank.WithDetail("order_id", orderID))
	}
	if err != nil {
		span.RecordError(err)
		return nil, database.Internal(s.logger, "failed to load order for payment", err, zap.Int64("order_id", orderID))
	}
	if order.PaymentStatus == status.PaymentPaid {
		return nil, errorbank.FailedPrecondition("order is already paid", errorbank.WithDetail("number", order.Number))
	}

	result, err := s.gateway.Charge(ctx, payment.ChargeRequest{
		Amount:    order.Total,
		Currency:  currency,
		Reference: order.Number,
		Token:     token,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway failure")
		s.logger.Error("payment gateway failure", zap.String("number", order.Number), zap.Error(err))
		return nil, errorbank.Internal("payment gateway unavailable", errorbank.WithCause(err))
	}

	at := s.now().UTC()
	if at.Before(order.UpdatedAt) {
		at = order.UpdatedAt
	}
	record := &entity.Payment{
		OrderID:       order.ID,
		Provider:      s.gateway.Provider(),
		Amount:        order.Total,
		Currency:      currency,
		Status:        status.PaymentFailed,
		TransactionID: result.TransactionID,
		Message:       result.Message,
		CreatedAt:     at,
	}
	if result.Success {
		record.Status = status.PaymentPaid
	}

	if err := s.recorder.Record(ctx, record); err != nil {
		if errors.Is(err, repo.ErrOrderNotFound) {
			return nil, errorbank.NotFound("order not found", errorbank.WithDetail("order_id", orderID))
		}
		span.RecordError(err)
		return nil, database.Internal(s.logger, "failed to record payment", err,
			zap.String("number", order.Number),
			zap.String("transaction_id", result.TransactionID),
		)
	}

	s.logger.Info("payment recorded",
		zap.String("number", order.Number),
		zap.String("status", record.Status.String()),
		zap.String("provider", record.Provider),
	)

	if s.cache != nil {
		if err := s.cache.Delete(ctx, cache.OrderKey(order.ID)); err != nil {
			s.logger.Warn("orders cache delete failed", zap.Int64("id", order.ID), zap.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, notify.OrderUpdate(order.ID)); err != nil {
			s.logger.Error("publish order update", zap.Int64("id", order.ID), zap.Error(err))
		}
	}
	return record, nil
}
