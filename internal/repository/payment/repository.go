package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/hatch/internal/database"
	"github.com/Additional-Code/hatch/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/hatch/repository/payment")

// ErrOrderNotFound is returned when the paid order no longer exists.
var ErrOrderNotFound = errors.New("order not found")

// Repository persists payment attempts.
type Repository struct {
	writer *bun.DB
}

// NewRepository wires a repository backed by the write connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer}
}

// Record stores p and mirrors its status onto the order's payment_status.
func (r *Repository) Record(ctx context.Context, p *entity.Payment) error {
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.Record", trace.WithAttributes(
		attribute.Int64("order.id", p.OrderID),
		attribute.String("payment.status", p.Status.String()),
	))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*entity.Order)(nil)).
			Set("payment_status = ?", p.Status).
			Set("updated_at = ?", p.CreatedAt).
			Where("id = ?", p.OrderID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update order payment status: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrOrderNotFound
		}
		if _, err := tx.NewInsert().Model(p).Exec(ctx); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrOrderNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record failed")
	}
	return err
}
