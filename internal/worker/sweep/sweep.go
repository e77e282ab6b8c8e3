// Package sweep periodically counts orders that have been open for longer
// than the configured threshold and reports the figure as a gauge.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/internal/config"
	"github.com/Additional-Code/hatch/internal/domain/status"
	orderrepo "github.com/Additional-Code/hatch/internal/repository/order"
)

var sweepMeter = otel.Meter("github.com/Additional-Code/hatch/worker/sweep")

// Counter counts orders by status and age.
type Counter interface {
	CountCreatedBefore(ctx context.Context, statuses []status.Order, cutoff time.Time) (int, error)
}

// Module schedules the late order sweep.
var Module = fx.Module("worker_sweep",
	fx.Provide(
		New,
		func(r *orderrepo.Repository) Counter { return r },
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Sweeper) {
		lc.Append(fx.Hook{OnStart: s.Start, OnStop: s.Stop})
	}),
)

// Sweeper owns the cron schedule.
type Sweeper struct {
	orders    Counter
	logger    *zap.Logger
	schedule  string
	lateAfter time.Duration
	now       func() time.Time
	gauge     metric.Int64Gauge
	cron      *cron.Cron
}

// New builds a Sweeper from configuration.
func New(orders Counter, cfg config.Config, logger *zap.Logger) (*Sweeper, error) {
	gauge, err := sweepMeter.Int64Gauge("orders.late",
		metric.WithDescription("Active orders older than the late threshold"))
	if err != nil {
		return nil, fmt.Errorf("create late gauge: %w", err)
	}
	return &Sweeper{
		orders:    orders,
		logger:    logger,
		schedule:  cfg.Messaging.Workers.SweepSchedule,
		lateAfter: cfg.Orders.LateAfter,
		now:       time.Now,
		gauge:     gauge,
		cron:      cron.New(),
	}, nil
}

// Start registers the job. An empty schedule disables the sweep.
func (s *Sweeper) Start(context.Context) error {
	if s.schedule == "" {
		s.logger.Info("late order sweep disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.logger.Error("late order sweep failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule late order sweep %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info("late order sweep started", zap.String("schedule", s.schedule), zap.Duration("late_after", s.lateAfter))
	return nil
}

// Stop waits for a running sweep to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep counts late orders once and records the result.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.lateAfter)
	n, err := s.orders.CountCreatedBefore(ctx, status.Active(), cutoff)
	if err != nil {
		return 0, err
	}
	s.gauge.Record(ctx, int64(n))
	if n > 0 {
		s.logger.Warn("orders running late", zap.Int("count", n), zap.Time("created_before", cutoff))
	}
	return n, nil
}
