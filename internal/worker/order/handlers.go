package order

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/internal/cache"
	"github.com/Additional-Code/hatch/internal/notify"
	"github.com/Additional-Code/hatch/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/hatch/worker/order")

// Module registers the order event handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(NewCacheInvalidator, fx.ResultTags(`group:"worker.handlers"`)),
	),
	BridgeModule,
)

// BridgeModule registers only the handler that relays bus events to local
// subscribers. View processes use it on its own.
var BridgeModule = fx.Provide(
	fx.Annotate(NewBridge, fx.ResultTags(`group:"worker.handlers"`)),
)

// NewBridge relays order updates received from the bus to subscribers in
// this process.
func NewBridge(hub *notify.Hub, logger *zap.Logger) worker.HandlerRegistration {
	handler := func(ctx context.Context, evt notify.Event) error {
		ctx, span := start(ctx, "worker.orders.bridge", evt)
		defer span.End()

		hub.Dispatch(ctx, evt)
		logger.Debug("order update relayed", zap.Int64("order_id", evt.OrderID))

		return nil
	}

	return worker.HandlerRegistration{
		Name:      "bridge",
		EventType: notify.TypeOrderUpdate,
		Handler:   handler,
	}
}

// NewCacheInvalidator drops the cached copy of an order whenever another
// instance reports a change to it.
func NewCacheInvalidator(store cache.Store, logger *zap.Logger) worker.HandlerRegistration {
	handler := func(ctx context.Context, evt notify.Event) error {
		ctx, span := start(ctx, "worker.orders.invalidate", evt)
		defer span.End()

		if err := store.Delete(ctx, cache.OrderKey(evt.OrderID)); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			logger.Error("failed to invalidate cached order", zap.Int64("order_id", evt.OrderID), zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "cache delete failed")
			return err
		}

		return nil
	}

	return worker.HandlerRegistration{
		Name:      "cache_invalidator",
		EventType: notify.TypeOrderUpdate,
		Handler:   handler,
	}
}

func start(ctx context.Context, name string, evt notify.Event) (context.Context, trace.Span) {
	return workerTracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("event.type", evt.Type),
		attribute.Int64("order.id", evt.OrderID),
	))
}
