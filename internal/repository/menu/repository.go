package menu

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/hatch/internal/database"
	"github.com/Additional-Code/hatch/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/hatch/repository/menu")

// ErrNotFound is returned when a menu item is missing.
var ErrNotFound = errors.New("menu item not found")

// Repository reads menu reference data.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires a repository backed by the read connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// List returns menu items in category display order. A zero categoryID
// returns every category.
func (r *Repository) List(ctx context.Context, categoryID int64, availableOnly bool) ([]*entity.MenuItem, error) {
	ctx, span := repoTracer.Start(ctx, "MenuRepository.List", trace.WithAttributes(
		attribute.Int64("menu.category_id", categoryID),
		attribute.Bool("menu.available_only", availableOnly),
	))
	defer span.End()

	var items []*entity.MenuItem
	q := r.reader.NewSelect().
		Model(&items).
		Relation("Category").
		OrderExpr("category.sort_order ASC, mi.name ASC, mi.id ASC")
	if categoryID > 0 {
		q = q.Where("mi.category_id = ?", categoryID)
	}
	if availableOnly {
		q = q.Where("mi.is_available = ?", true)
	}
	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return items, nil
}

// GetByID fetches one menu item.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.MenuItem, error) {
	ctx, span := repoTracer.Start(ctx, "MenuRepository.GetByID", trace.WithAttributes(attribute.Int64("menu.item_id", id)))
	defer span.End()

	item := new(entity.MenuItem)
	err := r.reader.NewSelect().Model(item).Where("mi.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return item, nil
}
