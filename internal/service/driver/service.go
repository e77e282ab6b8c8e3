package driver

import (
	"context"
	"errors"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/internal/database"
	"github.com/Additional-Code/hatch/internal/entity"
	repo "github.com/Additional-Code/hatch/internal/repository/driver"
	"github.com/Additional-Code/hatch/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/hatch/service/driver")

const (
	minRating = 1
	maxRating = 5
)

// Repository is the driver persistence the service depends on.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*entity.Driver, error)
	List(ctx context.Context, available *bool) ([]*entity.Driver, error)
	UpdateLocation(ctx context.Context, id int64, loc repo.Location) (*entity.Driver, error)
	SetAvailability(ctx context.Context, id int64, available bool) (*entity.Driver, error)
	AddRating(ctx context.Context, id int64, score int) (*entity.Driver, error)
}

// Location is a position report as submitted by a driver device.
type Location struct {
	Latitude  float64
	Longitude float64
	Accuracy  *float64
	Timestamp time.Time
}

// Service exposes driver availability, location and rating operations.
type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository Repository
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: p.Repository, logger: logger, now: time.Now}
}

// Get returns one driver.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Driver, error) {
	ctx, span := serviceTracer.Start(ctx, "DriverService.Get", trace.WithAttributes(attribute.Int64("driver.id", id)))
	defer span.End()

	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapErr(span, "failed to load driver", id, err)
	}
	return d, nil
}

// List returns drivers, optionally restricted by availability.
func (s *Service) List(ctx context.Context, available *bool) ([]*entity.Driver, error) {
	ctx, span := serviceTracer.Start(ctx, "DriverService.List")
	defer span.End()

	drivers, err := s.repo.List(ctx, available)
	if err != nil {
		return nil, s.mapErr(span, "failed to list drivers", 0, err)
	}
	return drivers, nil
}

// SetAvailability marks a driver as able or unable to take deliveries.
func (s *Service) SetAvailability(ctx context.Context, id int64, available bool) (*entity.Driver, error) {
	ctx, span := serviceTracer.Start(ctx, "DriverService.SetAvailability", trace.WithAttributes(attribute.Int64("driver.id", id)))
	defer span.End()

	d, err := s.repo.SetAvailability(ctx, id, available)
	if err != nil {
		return nil, s.mapErr(span, "failed to update availability", id, err)
	}
	s.logger.Info("driver availability changed", zap.Int64("id", id), zap.Bool("available", available))
	return d, nil
}

// UpdateLocation overwrites the driver's last known position. Reports are
// not ordered; the latest call wins.
func (s *Service) UpdateLocation(ctx context.Context, id int64, loc Location) (*entity.Driver, error) {
	ctx, span := serviceTracer.Start(ctx, "DriverService.UpdateLocation", trace.WithAttributes(attribute.Int64("driver.id", id)))
	defer span.End()

	if err := validateLocation(loc); err != nil {
		return nil, err
	}
	at := loc.Timestamp
	if at.IsZero() {
		at = s.now()
	}

	d, err := s.repo.UpdateLocation(ctx, id, repo.Location{
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Accuracy:  loc.Accuracy,
		At:        at.UTC(),
	})
	if err != nil {
		return nil, s.mapErr(span, "failed to update location", id, err)
	}
	return d, nil
}

// Rate records a customer rating between 1 and 5.
func (s *Service) Rate(ctx context.Context, id int64, score int) (*entity.Driver, error) {
	ctx, span := serviceTracer.Start(ctx, "DriverService.Rate", trace.WithAttributes(attribute.Int64("driver.id", id)))
	defer span.End()

	if score < minRating || score > maxRating {
		return nil, errorbank.InvalidArgument("rating must be between 1 and 5", errorbank.WithDetail("rating", score))
	}
	d, err := s.repo.AddRating(ctx, id, score)
	if err != nil {
		return nil, s.mapErr(span, "failed to record rating", id, err)
	}
	return d, nil
}

func validateLocation(loc Location) error {
	fields := map[string]string{}
	if math.IsNaN(loc.Latitude) || loc.Latitude < -90 || loc.Latitude > 90 {
		fields["latitude"] = "must be between -90 and 90"
	}
	if math.IsNaN(loc.Longitude) || loc.Longitude < -180 || loc.Longitude > 180 {
		fields["longitude"] = "must be between -180 and 180"
	}
	if loc.Accuracy != nil && (math.IsNaN(*loc.Accuracy) || *loc.Accuracy < 0) {
		fields["accuracy"] = "must not be negative"
	}
	if len(fields) > 0 {
		return errorbank.InvalidArgument("invalid location", errorbank.WithDetail("fields", fields))
	}
	return nil
}

func (s *Service) mapErr(span trace.Span, msg string, id int64, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return errorbank.NotFound("driver not found", errorbank.WithDetail("driver_id", id))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)

	fields := []zap.Field{zap.Int64("id", id), zap.Error(err)}
	opts := []errorbank.Option{errorbank.WithCause(err)}
	if code := database.ErrorCode(err); code != "" {
		fields = append(fields, zap.String("db_code", code))
		opts = append(opts, errorbank.WithDetail("code", code))
	}
	s.logger.Error(msg, fields...)
	return errorbank.Internal(msg, opts...)
}
