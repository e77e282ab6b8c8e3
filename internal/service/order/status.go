package order

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/internal/domain/status"
	"github.com/Additional-Code/hatch/internal/entity"
	driverrepo "github.com/Additional-Code/hatch/internal/repository/driver"
	repo "github.com/Additional-Code/hatch/internal/repository/order"
	"github.com/Additional-Code/hatch/pkg/errorbank"
)

// UpdateStatusInput carries a requested status change. DriverID is only
// honoured when the target status is OUT_FOR_DELIVERY.
type UpdateStatusInput struct {
	Status   string
	DriverID *int64
	StaffID  string
	Notes    string
}

// UpdateStatus moves an order to the requested status, optionally assigning
// a driver, and notifies subscribers. Nothing is written when validation fails.
func (s *Service) UpdateStatus(ctx context.Context, id int64, in UpdateStatusInput) (*entity.Order, error) {
	target, err := status.ParseOrder(in.Status)
	if err != nil {
		return nil, unknownStatus(err)
	}
	return s.apply(ctx, id, target, in)
}

// UpdateStatusSimple accepts the reduced status vocabulary
// (pending, preparing, ready, completed, cancelled) and never assigns a driver.
func (s *Service) UpdateStatusSimple(ctx context.Context, id int64, raw, staffID, notes string) (*entity.Order, error) {
	target, err := status.ParseSimple(raw)
	if err != nil {
		return nil, unknownStatus(err)
	}
	return s.apply(ctx, id, target, UpdateStatusInput{Status: raw, StaffID: staffID, Notes: notes})
}

func (s *Service) apply(ctx context.Context, id int64, target status.Order, in UpdateStatusInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.UpdateStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status", target.String()),
	))
	defer span.End()

	current, err := s.repo.GetFromPrimary(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found", errorbank.WithDetail("order_id", id))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, s.internal("failed to load order", err, zap.Int64("id", id))
	}

	if s.orders.EnforceTransition && !status.CanTransition(current.Status, target) {
		return nil, errorbank.FailedPrecondition("status transition not allowed",
			errorbank.WithDetail("from", current.Status),
			errorbank.WithDetail("to", target),
		)
	}

	change := repo.StatusChange{
		OrderID: id,
		From:    current.Status,
		To:      target,
		StaffID: strings.TrimSpace(in.StaffID),
		Notes:   strings.TrimSpace(in.Notes),
		At:      s.now().UTC(),
	}
	if change.At.Before(current.UpdatedAt) {
		change.At = current.UpdatedAt
	}

	if target == status.OutForDelivery && in.DriverID != nil {
		if err := s.checkDriver(ctx, *in.DriverID); err != nil {
			return nil, err
		}
		change.DriverID = in.DriverID
	}

	if err := s.repo.UpdateStatus(ctx, change); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found", errorbank.WithDetail("order_id", id))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return nil, s.internal("failed to update order status", err, zap.Int64("id", id))
	}

	s.logger.Info("order status updated",
		zap.Int64("id", id),
		zap.String("from", change.From.String()),
		zap.String("to", change.To.String()),
		zap.String("staff_id", change.StaffID),
	)

	s.evict(ctx, id)
	s.publish(ctx, id)
	if s.transitionCounter != nil {
		s.transitionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("order.status", target.String())))
	}

	updated, err := s.repo.GetFromPrimary(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, s.internal("failed to reload order", err, zap.Int64("id", id))
	}
	s.storeInCache(ctx, updated)
	return updated, nil
}

func (s *Service) checkDriver(ctx context.Context, driverID int64) error {
	driver, err := s.drivers.GetByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, driverrepo.ErrNotFound) {
			return errorbank.NotFound("driver not found", errorbank.WithDetail("driver_id", driverID))
		}
		return s.internal("failed to load driver", err, zap.Int64("driver_id", driverID))
	}
	if !driver.IsAvailable {
		return errorbank.FailedPrecondition("driver is not available", errorbank.WithDetail("driver_id", driverID))
	}
	return nil
}
