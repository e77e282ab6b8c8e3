package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Additional-Code/hatch/internal/config"
	"github.com/Additional-Code/hatch/internal/messaging"
	"github.com/Additional-Code/hatch/internal/notify"
)

// EventHandler reacts to one decoded event.
type EventHandler func(ctx context.Context, evt notify.Event) error

// HandlerRegistration binds an event type to a handler.
type HandlerRegistration struct {
	Name      string
	EventType string
	Handler   EventHandler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Engine consumes the orders channel and fans each event out to the
// handlers registered for its type.
type Engine struct {
	client        messaging.Client
	logger        *zap.Logger
	cfg           config.Config
	registrations map[string][]HandlerRegistration
	newBackOff    func() backoff.BackOff
	cancel        context.CancelFunc
	wg            *sync.WaitGroup
}

// NewEngine constructs the worker Engine.
func NewEngine(p Params) *Engine {
	reg := make(map[string][]HandlerRegistration, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.EventType == "" || r.Handler == nil {
			continue
		}
		reg[r.EventType] = append(reg[r.EventType], r)
	}

	return &Engine{
		client:        p.Client,
		logger:        p.Logger,
		cfg:           p.Config,
		registrations: reg,
		newBackOff:    consumeBackOff,
	}
}

// consumeBackOff spaces out reconnects to the bus and never gives up.
func consumeBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Module wires the engine into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.start,
			OnStop:  engine.stop,
		})
	}),
)

func (e *Engine) start(ctx context.Context) error {
	if !e.cfg.Messaging.Enabled || !e.cfg.Messaging.Workers.Enabled {
		e.logger.Info("worker engine disabled")

		return nil
	}
	if len(e.registrations) == 0 {
		e.logger.Info("worker engine has no handlers; skipping")

		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg = &sync.WaitGroup{}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.consumeLoop(runCtx)
	}()

	e.logger.Info("worker engine started",
		zap.String("topic", e.client.Topic()),
		zap.Int("concurrency", e.concurrency()),
	)

	return nil
}

func (e *Engine) stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	done := make(chan struct{})
	go func() {
		if e.wg != nil {
			e.wg.Wait()
		}
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		e.logger.Info("worker engine stopped")

		return nil
	}
}

func (e *Engine) concurrency() int {
	if n := e.cfg.Messaging.Workers.Concurrency; n > 0 {
		return n
	}
	return 1
}

func (e *Engine) consumeLoop(ctx context.Context) {
	err := backoff.RetryNotify(func() error {
		err := e.client.Consume(ctx, e.Handle)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(e.newBackOff(), ctx), func(err error, wait time.Duration) {
		e.logger.Error("consume loop error", zap.Error(err), zap.Duration("retry_in", wait))
	})
	if err != nil && ctx.Err() == nil {
		e.logger.Error("consume loop stopped", zap.Error(err))
	}
}

// Handle decodes msg and runs every handler registered for its event type.
// Undecodable messages are logged and acknowledged so they are not redelivered.
func (e *Engine) Handle(ctx context.Context, msg messaging.Message) error {
	evt, err := notify.Decode(msg.Value)
	if err != nil {
		e.logger.Warn("dropping malformed event", zap.String("topic", msg.Topic), zap.Int64("offset", msg.Offset), zap.Error(err))

		return nil
	}

	handlers := e.registrations[evt.Type]
	if len(handlers) == 0 {
		e.logger.Debug("no handler for event type", zap.String("type", evt.Type))

		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency())
	for _, h := range handlers {
		g.Go(func() error {
			if err := h.Handler(gctx, evt); err != nil {
				return fmt.Errorf("%s: %w", h.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
