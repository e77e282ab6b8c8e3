package http

import (
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	ordertransport "github.com/Additional-Code/hatch/internal/transport/http/order"
)

func TestLogRoutes_OrderSurface(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := echo.New()
	ordertransport.Register(e, &ordertransport.Handler{})

	LogRoutes(e, zap.New(core))

	var mounted []string
	for _, entry := range logs.FilterMessage("route registered").All() {
		fields := entry.ContextMap()
		mounted = append(mounted, fields["method"].(string)+" "+fields["path"].(string))
	}
	for _, want := range []string{
		"POST /orders",
		"GET /orders",
		"GET /orders/:id",
		"PUT /orders/:id/status",
		"PATCH /orders/:id/status",
	} {
		assert.Contains(t, mounted, want)
	}

	summary := logs.FilterMessage("http routes mounted").All()
	require.Len(t, summary, 1)
	assert.EqualValues(t, len(e.Routes()), summary[0].ContextMap()["count"])
}
