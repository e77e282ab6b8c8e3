package driver

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/hatch/internal/database"
	"github.com/Additional-Code/hatch/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/hatch/repository/driver")

// ErrNotFound is returned when a driver is missing.
var ErrNotFound = errors.New("driver not found")

// Location is a single position report.
type Location struct {
	Latitude  float64
	Longitude float64
	Accuracy  *float64
	At        time.Time
}

// Repository encapsulates read/write access for drivers.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// GetByID fetches a driver by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Driver, error) {
	ctx, span := repoTracer.Start(ctx, "DriverRepository.GetByID", trace.WithAttributes(attribute.Int64("driver.id", id)))
	defer span.End()

	return r.get(ctx, span, r.reader, id)
}

func (r *Repository) get(ctx context.Context, span trace.Span, db bun.IDB, id int64) (*entity.Driver, error) {
	d := new(entity.Driver)
	err := db.NewSelect().Model(d).Where("d.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return d, nil
}

// List returns drivers ordered by name, optionally filtered by availability.
func (r *Repository) List(ctx context.Context, available *bool) ([]*entity.Driver, error) {
	ctx, span := repoTracer.Start(ctx, "DriverRepository.List")
	defer span.End()

	var drivers []*entity.Driver
	q := r.reader.NewSelect().Model(&drivers).Order("d.name ASC", "d.id ASC")
	if available != nil {
		q = q.Where("d.is_available = ?", *available)
	}
	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return drivers, nil
}

// UpdateLocation overwrites the driver's last known position.
func (r *Repository) UpdateLocation(ctx context.Context, id int64, loc Location) (*entity.Driver, error) {
	ctx, span := repoTracer.Start(ctx, "DriverRepository.UpdateLocation", trace.WithAttributes(attribute.Int64("driver.id", id)))
	defer span.End()

	return r.update(ctx, span, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.
			Set("latitude = ?", loc.Latitude).
			Set("longitude = ?", loc.Longitude).
			Set("accuracy = ?", loc.Accuracy).
			Set("located_at = ?", loc.At).
			Set("updated_at = ?", time.Now().UTC())
	})
}

// SetAvailability toggles whether the driver can take deliveries.
func (r *Repository) SetAvailability(ctx context.Context, id int64, available bool) (*entity.Driver, error) {
	ctx, span := repoTracer.Start(ctx, "DriverRepository.SetAvailability", trace.WithAttributes(
		attribute.Int64("driver.id", id),
		attribute.Bool("driver.available", available),
	))
	defer span.End()

	return r.update(ctx, span, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.
			Set("is_available = ?", available).
			Set("updated_at = ?", time.Now().UTC())
	})
}

// AddRating folds score into the driver's cumulative average in a single
// statement, so concurrent ratings are not lost.
func (r *Repository) AddRating(ctx context.Context, id int64, score int) (*entity.Driver, error) {
	ctx, span := repoTracer.Start(ctx, "DriverRepository.AddRating", trace.WithAttributes(attribute.Int64("driver.id", id)))
	defer span.End()

	return r.update(ctx, span, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.
			Set("rating = (rating * rating_count + ?) / (rating_count + 1)", float64(score)).
			Set("rating_count = rating_count + 1").
			Set("updated_at = ?", time.Now().UTC())
	})
}

func (r *Repository) update(ctx context.Context, span trace.Span, id int64, apply func(*bun.UpdateQuery) *bun.UpdateQuery) (*entity.Driver, error) {
	q := r.writer.NewUpdate().
		Model((*entity.Driver)(nil)).
		Where("id = ?", id)

	res, err := apply(q).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	return r.get(ctx, span, r.writer, id)
}
