package http

import (
	"sort"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"

	drivertransport "github.com/Additional-Code/hatch/internal/transport/http/driver"
	menutransport "github.com/Additional-Code/hatch/internal/transport/http/menu"
	ordertransport "github.com/Additional-Code/hatch/internal/transport/http/order"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	drivertransport.Module,
	menutransport.Module,
	fx.Invoke(LogRoutes),
)

// LogRoutes records the mounted API surface once every handler has
// registered.
func LogRoutes(e *echo.Echo, logger *zap.Logger) {
	routes := e.Routes()
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	for _, r := range routes {
		logger.Debug("route registered", zap.String("method", r.Method), zap.String("path", r.Path))
	}
	logger.Info("http routes mounted", zap.Int("count", len(routes)))
}
