package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Additional-Code/hatch/internal/config"
	"github.com/Additional-Code/hatch/internal/database"
	"github.com/Additional-Code/hatch/internal/observability"
	"github.com/Additional-Code/hatch/internal/presentation/http/response"
	"github.com/Additional-Code/hatch/pkg/errorbank"
)

const (
	healthTimeout      = 2 * time.Second
	rateLimiterExpires = 3 * time.Minute
)

// Module exposes the HTTP server lifecycle to Fx.
var Module = fx.Module("http_server",
	fx.Provide(NewEcho),
	fx.Invoke(Run),
)

// Params defines dependencies for constructing the router.
type Params struct {
	fx.In

	Config        config.Config
	Observability *observability.Manager `optional:"true"`
	Database      *database.Connections  `optional:"true"`
	Logger        *zap.Logger
}

// NewEcho configures the Echo router with the shared middleware chain.
func NewEcho(p Params) *echo.Echo {
	cfg, obs, logger := p.Config, p.Observability, p.Logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))

	if obs != nil && obs.TracingEnabled() {
		e.Use(otelecho.Middleware(cfg.Observability.ServiceName))
	}

	if cfg.HTTP.RateLimit > 0 {
		store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(cfg.HTTP.RateLimit),
			Burst:     cfg.HTTP.RateBurst,
			ExpiresIn: rateLimiterExpires,
		})
		e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/health"
			},
			Store: store,
			DenyHandler: func(c echo.Context, identifier string, err error) error {
				return response.New(c).
					WithError(errorbank.ResourceExhausted("rate limit exceeded", errorbank.WithDetail("client", identifier))).
					Build()
			},
		}))
	}

	e.GET("/health", health(p.Database))

	if obs != nil && obs.MetricsEnabled() && obs.MetricsHandler() != nil {
		e.GET(cfg.Observability.PrometheusPath, echo.WrapHandler(obs.MetricsHandler()))
	}

	return e
}

func health(conns *database.Connections) echo.HandlerFunc {
	return func(c echo.Context) error {
		if conns == nil {
			return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()
		if err := conns.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
	}
}

// errorHandler renders router-level failures (unknown routes, bad methods)
// in the same envelope as handler errors.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var appErr error
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			msg := http.StatusText(httpErr.Code)
			switch {
			case httpErr.Code == http.StatusNotFound:
				appErr = errorbank.NotFound(msg)
			case httpErr.Code < http.StatusInternalServerError:
				appErr = errorbank.InvalidArgument(msg)
			default:
				appErr = errorbank.Internal(msg, errorbank.WithCause(err))
			}
			if rerr := response.New(c).WithStatus(httpErr.Code).WithError(appErr).Build(); rerr != nil {
				logger.Error("write error response", zap.Error(rerr))
			}
			return
		}

		logger.Error("http request failed", zap.Error(err))
		if rerr := response.New(c).WithError(err).Build(); rerr != nil {
			logger.Error("write error response", zap.Error(rerr))
		}
	}
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
				zap.String("remote_ip", v.RemoteIP),
			}
			if cause, ok := c.Get(response.CauseKey).(error); ok && cause != nil {
				fields = append(fields, zap.NamedError("cause", cause))
			}
			switch {
			case v.Status >= http.StatusInternalServerError:
				logger.Error("http request", fields...)
			case v.Error != nil:
				logger.Warn("http request", append(fields, zap.Error(v.Error))...)
			default:
				logger.Info("http request", fields...)
			}
			return nil
		},
	})
}

// Run starts the HTTP server and ties it to the Fx lifecycle.
func Run(lc fx.Lifecycle, cfg config.Config, e *echo.Echo, logger *zap.Logger) {
	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)

	server := &http.Server{
		Addr:              addr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting HTTP server", zap.String("addr", addr))
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping HTTP server")
			return server.Shutdown(ctx)
		},
	})
}
