package menu

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/Additional-Code/hatch/internal/dto"
	"github.com/Additional-Code/hatch/internal/entity"
	"github.com/Additional-Code/hatch/internal/presentation/http/response"
	service "github.com/Additional-Code/hatch/internal/service/menu"
	"github.com/Additional-Code/hatch/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/hatch/transport/http/menu")

// MenuService lists menu items.
type MenuService interface {
	List(ctx context.Context, f service.Filter) ([]*entity.MenuItem, error)
}

// Handler exposes the menu over HTTP.
type Handler struct {
	svc MenuService
}

// NewHandler constructs a menu Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/menu", h.list)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	var f service.Filter
	if raw := c.QueryParam("categoryId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return b.WithError(errorbank.InvalidArgument("invalid categoryId", errorbank.WithCause(err))).Build()
		}
		f.CategoryID = id
	}
	if raw := c.QueryParam("available"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return b.WithError(errorbank.InvalidArgument("invalid available flag", errorbank.WithCause(err))).Build()
		}
		f.AvailableOnly = v
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "menu.list")
	defer span.End()

	items, err := h.svc.List(ctx, f)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewMenuList(items)).WithMeta("count", len(items)).Build()
}
