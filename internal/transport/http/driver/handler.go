package driver

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/hatch/internal/dto"
	"github.com/Additional-Code/hatch/internal/entity"
	"github.com/Additional-Code/hatch/internal/presentation/http/response"
	service "github.com/Additional-Code/hatch/internal/service/driver"
	"github.com/Additional-Code/hatch/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/hatch/transport/http/driver")

// DriverService is the driver behaviour the handler exposes.
type DriverService interface {
	Get(ctx context.Context, id int64) (*entity.Driver, error)
	List(ctx context.Context, available *bool) ([]*entity.Driver, error)
	SetAvailability(ctx context.Context, id int64, available bool) (*entity.Driver, error)
	UpdateLocation(ctx context.Context, id int64, loc service.Location) (*entity.Driver, error)
	Rate(ctx context.Context, id int64, score int) (*entity.Driver, error)
}

// Handler exposes driver endpoints over HTTP.
type Handler struct {
	svc DriverService
}

// NewHandler constructs a driver Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/drivers")
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.PUT("/:id/availability", h.setAvailability)
	g.PUT("/:id/location", h.updateLocation)
	g.POST("/:id/rating", h.rate)
}

type availabilityRequest struct {
	Available *bool `json:"available"`
}

type locationRequest struct {
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
	Accuracy  *float64  `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

type ratingRequest struct {
	Rating int `json:"rating"`
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	var available *bool
	if raw := c.QueryParam("available"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return b.WithError(errorbank.InvalidArgument("invalid available flag", errorbank.WithCause(err))).Build()
		}
		available = &v
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "drivers.list")
	defer span.End()

	drivers, err := h.svc.List(ctx, available)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewDriverList(drivers)).WithMeta("count", len(drivers)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "drivers.getByID", trace.WithAttributes(attribute.Int64("driver.id", id)))
	defer span.End()

	d, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewDriverResponse(d)).Build()
}

func (h *Handler) setAvailability(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload availabilityRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.Available == nil {
		return b.WithError(errorbank.InvalidArgument("available is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "drivers.setAvailability", trace.WithAttributes(attribute.Int64("driver.id", id)))
	defer span.End()

	d, err := h.svc.SetAvailability(ctx, id, *payload.Available)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewDriverResponse(d)).Build()
}

func (h *Handler) updateLocation(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload locationRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.Latitude == nil || payload.Longitude == nil {
		return b.WithError(errorbank.InvalidArgument("latitude and longitude are required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "drivers.updateLocation", trace.WithAttributes(attribute.Int64("driver.id", id)))
	defer span.End()

	d, err := h.svc.UpdateLocation(ctx, id, service.Location{
		Latitude:  *payload.Latitude,
		Longitude: *payload.Longitude,
		Accuracy:  payload.Accuracy,
		Timestamp: payload.Timestamp,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewDriverResponse(d)).Build()
}

func (h *Handler) rate(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload ratingRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "drivers.rate", trace.WithAttributes(attribute.Int64("driver.id", id)))
	defer span.End()

	d, err := h.svc.Rate(ctx, id, payload.Rating)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewDriverResponse(d)).Build()
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.InvalidArgument("invalid id", errorbank.WithDetail("id", c.Param("id")))
	}
	return id, nil
}
