package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/hatch/internal/database"
	"github.com/Additional-Code/hatch/internal/domain/status"
	"github.com/Additional-Code/hatch/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/hatch/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ListFilter narrows an order listing. Zero values mean "no restriction".
type ListFilter struct {
	Statuses    []status.Order
	OrderNumber string
	DriverID    *int64
	Limit       int
}

// StatusChange describes one status update and its audit entry.
type StatusChange struct {
	OrderID  int64
	From     status.Order
	To       status.Order
	DriverID *int64
	StaffID  string
	Notes    string
	At       time.Time
}

// CompletesDelivery reports whether the change hands an order over to the
// customer for the first time, which credits the assigned driver.
func (c StatusChange) CompletesDelivery() bool {
	return c.To == status.Delivered && c.From != status.Delivered
}

// NumberFormatter turns a sequence value into a human-facing order number.
type NumberFormatter func(seq int64) string

// Repository encapsulates read/write access for orders.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create assigns the next sequence number and persists the order with its
// items in one transaction. The maximum is read without locking, so two
// concurrent calls can pick the same sequence; the unique index on
// orders.sequence rejects the second insert.
func (r *Repository) Create(ctx context.Context, order *entity.Order, format NumberFormatter) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.Int("order.items", len(order.Items))))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var maxSeq sql.NullInt64
		if err := tx.NewSelect().
			Model((*entity.Order)(nil)).
			ColumnExpr("MAX(o.sequence)").
			Scan(ctx, &maxSeq); err != nil {
			return fmt.Errorf("read sequence: %w", err)
		}

		order.Sequence = maxSeq.Int64 + 1
		order.Number = format(order.Sequence)

		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		if len(order.Items) == 0 {
			return nil
		}
		for _, item := range order.Items {
			item.OrderID = order.ID
		}
		if _, err := tx.NewInsert().Model(&order.Items).Exec(ctx); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	span.SetAttributes(attribute.String("order.number", order.Number))
	return nil
}

// GetByID fetches an order with its items, driver and payments using the
// read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	return r.get(ctx, span, r.reader, id)
}

// GetFromPrimary is GetByID against the writer, for reads that must observe
// a write made moments earlier.
func (r *Repository) GetFromPrimary(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetFromPrimary", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	return r.get(ctx, span, r.writer, id)
}

func (r *Repository) get(ctx context.Context, span trace.Span, db bun.IDB, id int64) (*entity.Order, error) {
	order := new(entity.Order)
	err := db.NewSelect().
		Model(order).
		Relation("Items", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("oi.id ASC")
		}).
		Relation("Driver").
		Relation("Payments", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("p.created_at ASC", "p.id ASC")
		}).
		Where("o.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// List returns orders matching f, newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List", trace.WithAttributes(
		attribute.Int("filter.statuses", len(f.Statuses)),
		attribute.String("filter.number", f.OrderNumber),
	))
	defer span.End()

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	orders := make([]*entity.Order, 0, limit)
	q := r.reader.NewSelect().
		Model(&orders).
		Relation("Items", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("oi.id ASC")
		}).
		Relation("Driver").
		OrderExpr("o.created_at DESC, o.id DESC").
		Limit(limit)

	if len(f.Statuses) > 0 {
		q = q.Where("o.status IN (?)", bun.In(f.Statuses))
	}
	if f.OrderNumber != "" {
		q = q.Where("o.number = ?", f.OrderNumber)
	}
	if f.DriverID != nil {
		q = q.Where("o.driver_id = ?", *f.DriverID)
	}

	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// UpdateStatus writes the new status (and driver, when given), appends the
// audit entry and, on delivery, credits the order's driver with the trip and
// the delivery fee, all in one transaction. Concurrent updates are last-write-wins.
func (r *Repository) UpdateStatus(ctx context.Context, change StatusChange) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateStatus", trace.WithAttributes(
		attribute.Int64("order.id", change.OrderID),
		attribute.String("order.status", change.To.String()),
	))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewUpdate().
			Model((*entity.Order)(nil)).
			Set("status = ?", change.To).
			Set("updated_at = ?", change.At).
			Where("id = ?", change.OrderID)
		if change.DriverID != nil {
			q = q.Set("driver_id = ?", *change.DriverID)
		}

		res, err := q.Exec(ctx)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}

		entry := &entity.OrderStatusLog{
			OrderID:    change.OrderID,
			FromStatus: change.From,
			ToStatus:   change.To,
			DriverID:   change.DriverID,
			StaffID:    change.StaffID,
			Notes:      change.Notes,
			CreatedAt:  change.At,
		}
		if _, err := tx.NewInsert().Model(entry).Exec(ctx); err != nil {
			return fmt.Errorf("insert status log: %w", err)
		}

		if change.CompletesDelivery() {
			_, err := tx.NewUpdate().
				Model((*entity.Driver)(nil)).
				TableExpr("orders AS o").
				Set("delivery_count = d.delivery_count + 1").
				Set("earnings = d.earnings + o.delivery_fee").
				Set("updated_at = ?", change.At).
				Where("o.id = ?", change.OrderID).
				Where("d.id = o.driver_id").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("credit driver: %w", err)
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}

// History returns the status log of an order, oldest first.
func (r *Repository) History(ctx context.Context, orderID int64) ([]entity.OrderStatusLog, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.History", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var entries []entity.OrderStatusLog
	err := r.reader.NewSelect().
		Model(&entries).
		Where("osl.order_id = ?", orderID).
		Order("osl.created_at ASC", "osl.id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return entries, nil
}

// CountCreatedBefore counts orders in one of statuses created before cutoff.
func (r *Repository) CountCreatedBefore(ctx context.Context, statuses []status.Order, cutoff time.Time) (int, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CountCreatedBefore")
	defer span.End()

	n, err := r.reader.NewSelect().
		Model((*entity.Order)(nil)).
		Where("o.status IN (?)", bun.In(statuses)).
		Where("o.created_at < ?", cutoff).
		Count(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
		return 0, err
	}
	return n, nil
}
