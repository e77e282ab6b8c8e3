package order

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/hatch/internal/dto"
	"github.com/Additional-Code/hatch/internal/entity"
	"github.com/Additional-Code/hatch/internal/presentation/http/response"
	service "github.com/Additional-Code/hatch/internal/service/order"
	paymentsvc "github.com/Additional-Code/hatch/internal/service/payment"
	"github.com/Additional-Code/hatch/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/hatch/transport/http/order")

// OrderService is the order behaviour the handler exposes.
type OrderService interface {
	Create(ctx context.Context, in service.CreateInput) (*entity.Order, error)
	Get(ctx context.Context, id int64) (*entity.Order, error)
	List(ctx context.Context, in service.ListInput) ([]*entity.Order, error)
	History(ctx context.Context, id int64) ([]entity.OrderStatusLog, error)
	UpdateStatus(ctx context.Context, id int64, in service.UpdateStatusInput) (*entity.Order, error)
	UpdateStatusSimple(ctx context.Context, id int64, raw, staffID, notes string) (*entity.Order, error)
}

// PaymentService takes payments against orders.
type PaymentService interface {
	Charge(ctx context.Context, orderID int64, in paymentsvc.ChargeInput) (*entity.Payment, error)
}

// Handler exposes order endpoints over HTTP.
type Handler struct {
	orders   OrderService
	payments PaymentService
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service, payments *paymentsvc.Service) *Handler {
	return &Handler{orders: svc, payments: payments}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.GET("/:id/history", h.history)
	g.PUT("/:id/status", h.updateStatus)
	g.PATCH("/:id/status", h.patchStatus)
	g.POST("/:id/payments", h.charge)
}

type itemRequest struct {
	MenuItemID  *int64          `json:"menuItemId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
}

type createRequest struct {
	CustomerName    string          `json:"customerName"`
	CustomerEmail   string          `json:"customerEmail"`
	CustomerPhone   string          `json:"customerPhone"`
	DeliveryAddress string          `json:"deliveryAddress"`
	Type            string          `json:"type"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	DeliveryFee     decimal.Decimal `json:"deliveryFee"`
	Notes           string          `json:"notes"`
	Items           []itemRequest   `json:"items"`
}

type statusRequest struct {
	Status   string `json:"status"`
	DriverID *int64 `json:"driverId"`
	StaffID  string `json:"staffId"`
	Notes    string `json:"notes"`
}

type chargeRequest struct {
	Token    string `json:"token"`
	Currency string `json:"currency"`
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload createRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	in := service.CreateInput{
		CustomerName:    payload.CustomerName,
		CustomerEmail:   payload.CustomerEmail,
		CustomerPhone:   payload.CustomerPhone,
		DeliveryAddress: payload.DeliveryAddress,
		Type:            payload.Type,
		Subtotal:        payload.Subtotal,
		Tax:             payload.Tax,
		DeliveryFee:     payload.DeliveryFee,
		Notes:           payload.Notes,
		Items:           make([]service.ItemInput, 0, len(payload.Items)),
	}
	for _, it := range payload.Items {
		in.Items = append(in.Items, service.ItemInput{
			MenuItemID:  it.MenuItemID,
			Name:        it.Name,
			Description: it.Description,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
		})
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create", trace.WithAttributes(
		attribute.Int("order.items", len(in.Items)),
	))
	defer span.End()

	order, err := h.orders.Create(ctx, in)
	if err != nil {
		return b.WithError(err).Build()
	}

	span.SetAttributes(attribute.String("order.number", order.Number))
	return b.WithStatus(http.StatusCreated).WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	in := service.ListInput{OrderNumber: strings.TrimSpace(c.QueryParam("orderNumber"))}
	for _, raw := range strings.Split(c.QueryParam("status"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			in.Statuses = append(in.Statuses, raw)
		}
	}
	if raw := c.QueryParam("driverId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return b.WithError(errorbank.InvalidArgument("invalid driverId", errorbank.WithCause(err))).Build()
		}
		in.DriverID = &id
	}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return b.WithError(errorbank.InvalidArgument("invalid limit", errorbank.WithCause(err))).Build()
		}
		in.Limit = limit
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list")
	defer span.End()

	orders, err := h.orders.List(ctx, in)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.NewOrderList(orders)).WithMeta("count", len(orders)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.orders.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) history(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.history", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	entries, err := h.orders.History(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.NewStatusLog(entries)).Build()
}

func (h *Handler) updateStatus(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload statusRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.updateStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.requested_status", payload.Status),
	))
	defer span.End()

	order, err := h.orders.UpdateStatus(ctx, id, service.UpdateStatusInput{
		Status:   payload.Status,
		DriverID: payload.DriverID,
		StaffID:  payload.StaffID,
		Notes:    payload.Notes,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) patchStatus(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload statusRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.patchStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.requested_status", payload.Status),
	))
	defer span.End()

	order, err := h.orders.UpdateStatusSimple(ctx, id, payload.Status, payload.StaffID, payload.Notes)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) charge(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload chargeRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.charge", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	p, err := h.payments.Charge(ctx, id, paymentsvc.ChargeInput{Token: payload.Token, Currency: payload.Currency})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.NewPaymentResponse(p)).Build()
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.InvalidArgument("invalid id", errorbank.WithDetail("id", c.Param("id")))
	}
	return id, nil
}
