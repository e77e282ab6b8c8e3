package order

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/internal/database"
	"github.com/Additional-Code/hatch/internal/domain/status"
	"github.com/Additional-Code/hatch/internal/entity"
	menurepo "github.com/Additional-Code/hatch/internal/repository/menu"
	"github.com/Additional-Code/hatch/pkg/errorbank"
)

const priceCheckWarn = "warn"

// maxMoney is the largest value a NUMERIC(10,2) column holds.
var maxMoney = decimal.RequireFromString("99999999.99")

// checkMoney reports why v cannot be stored as a two-decimal amount, or "".
func checkMoney(v decimal.Decimal) string {
	switch {
	case v.IsNegative():
		return "must not be negative"
	case v.Exponent() < -2 && !v.Equal(v.Round(2)):
		return "must have at most two decimal places"
	case v.GreaterThan(maxMoney):
		return "must not exceed " + maxMoney.StringFixed(2)
	}
	return ""
}

// ItemInput is one line of a new order as submitted by the caller.
type ItemInput struct {
	MenuItemID  *int64
	Name        string
	Description string
	UnitPrice   decimal.Decimal
	Quantity    int
}

// CreateInput is the caller-supplied content of a new order. Money figures
// are taken as given.
type CreateInput struct {
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	DeliveryAddress string
	Type            string
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	DeliveryFee     decimal.Decimal
	Notes           string
	Items           []ItemInput
}

// Create validates in, assigns the next order number and persists the order
// with status PENDING.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create")
	defer span.End()

	order, err := s.build(in)
	if err != nil {
		span.SetStatus(codes.Error, "invalid input")
		return nil, err
	}

	if s.orders.PriceCheck == priceCheckWarn {
		s.checkPrices(ctx, order)
	}

	if err := s.repo.Create(ctx, order, s.FormatNumber); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		switch {
		case database.IsUniqueViolation(err):
			s.logger.Warn("order number collision",
				zap.String("number", order.Number),
				zap.Int64("sequence", order.Sequence),
				zap.String("db_code", database.ErrorCode(err)),
			)
			return nil, errorbank.Conflict("order number already taken",
				errorbank.WithCause(err),
				errorbank.WithDetail("number", order.Number),
			)
		case database.IsForeignKeyViolation(err):
			return nil, errorbank.InvalidArgument("order references an unknown menu item", errorbank.WithCause(err))
		default:
			return nil, s.internal("failed to create order", err)
		}
	}

	span.SetAttributes(attribute.String("order.number", order.Number), attribute.Int64("order.id", order.ID))
	s.logger.Info("order created",
		zap.Int64("id", order.ID),
		zap.String("number", order.Number),
		zap.String("total", order.Total.StringFixed(2)),
	)

	s.storeInCache(ctx, order)
	s.publish(ctx, order.ID)
	if s.createdCounter != nil {
		s.createdCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("order.type", order.Type.String())))
	}
	return order, nil
}

func (s *Service) build(in CreateInput) (*entity.Order, error) {
	fields := map[string]string{}

	name := strings.TrimSpace(in.CustomerName)
	if name == "" {
		fields["customerName"] = "required"
	}

	orderType, err := status.ParseOrderType(in.Type)
	if err != nil {
		fields["type"] = "must be one of DELIVERY, COLLECTION, TAKEAWAY"
	}

	address := strings.TrimSpace(in.DeliveryAddress)
	if orderType == status.Delivery && address == "" {
		fields["deliveryAddress"] = "required for delivery orders"
	}

	for key, v := range map[string]decimal.Decimal{
		"subtotal":    in.Subtotal,
		"tax":         in.Tax,
		"deliveryFee": in.DeliveryFee,
	} {
		if msg := checkMoney(v); msg != "" {
			fields[key] = msg
		}
	}

	if len(in.Items) == 0 {
		fields["items"] = "at least one item is required"
	}

	items := make([]*entity.OrderItem, 0, len(in.Items))
	for i, it := range in.Items {
		prefix := "items[" + strconv.Itoa(i) + "]."
		itemName := strings.TrimSpace(it.Name)
		if itemName == "" {
			fields[prefix+"name"] = "required"
		}
		switch {
		case it.Quantity <= 0:
			fields[prefix+"quantity"] = "must be greater than zero"
		case it.Quantity > math.MaxInt32:
			fields[prefix+"quantity"] = "must not exceed " + strconv.Itoa(math.MaxInt32)
		}
		if msg := checkMoney(it.UnitPrice); msg != "" {
			fields[prefix+"unitPrice"] = msg
		}
		lineTotal := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		if _, bad := fields[prefix+"unitPrice"]; !bad && lineTotal.GreaterThan(maxMoney) {
			fields[prefix+"quantity"] = "line total must not exceed " + maxMoney.StringFixed(2)
		}
		items = append(items, &entity.OrderItem{
			MenuItemID:  it.MenuItemID,
			Name:        itemName,
			Description: strings.TrimSpace(it.Description),
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			LineTotal:   lineTotal,
		})
	}

	total := in.Subtotal.Add(in.Tax).Add(in.DeliveryFee)
	if len(fields) == 0 && total.GreaterThan(maxMoney) {
		fields["total"] = "must not exceed " + maxMoney.StringFixed(2)
	}

	if len(fields) > 0 {
		return nil, errorbank.InvalidArgument("invalid order", errorbank.WithDetail("fields", fields))
	}

	now := s.now().UTC()
	return &entity.Order{
		CustomerName:    name,
		CustomerEmail:   strings.TrimSpace(in.CustomerEmail),
		CustomerPhone:   strings.TrimSpace(in.CustomerPhone),
		DeliveryAddress: address,
		Type:            orderType,
		Status:          status.Pending,
		PaymentStatus:   status.PaymentPending,
		Subtotal:        in.Subtotal,
		Tax:             in.Tax,
		DeliveryFee:     in.DeliveryFee,
		Total:           total,
		Notes:           strings.TrimSpace(in.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
		Items:           items,
	}, nil
}

// checkPrices logs items whose submitted price differs from the menu.
func (s *Service) checkPrices(ctx context.Context, order *entity.Order) {
	if s.menu == nil {
		return
	}
	for _, item := range order.Items {
		if item.MenuItemID == nil {
			continue
		}
		menuItem, err := s.menu.GetByID(ctx, *item.MenuItemID)
		if err != nil {
			if !errors.Is(err, menurepo.ErrNotFound) {
				s.logger.Warn("price check lookup failed", zap.Int64("menu_item_id", *item.MenuItemID), zap.Error(err))
			}
			continue
		}
		if !menuItem.Price.Equal(item.UnitPrice) {
			s.logger.Warn("submitted price differs from menu",
				zap.Int64("menu_item_id", menuItem.ID),
				zap.String("item", item.Name),
				zap.String("submitted", item.UnitPrice.StringFixed(2)),
				zap.String("menu", menuItem.Price.StringFixed(2)),
			)
		}
	}
}
