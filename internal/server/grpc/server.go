package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/Additional-Code/hatch/internal/config"
	"github.com/Additional-Code/hatch/internal/database"
	"github.com/Additional-Code/hatch/pkg/errorbank"
)

// OrdersService is the health service name reported for the order API.
const OrdersService = "hatch.Orders"

// Module exposes the gRPC server and lifecycle hooks to Fx.
var Module = fx.Module("grpc_server",
	fx.Provide(NewServer, health.NewServer),
	fx.Invoke(Run),
)

// UnaryInterceptor logs each call and converts application errors into
// gRPC statuses.
func UnaryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc handler panic", zap.String("method", info.FullMethod), zap.Any("panic", r))
				err = status.Error(codes.Internal, "internal error")
			}
		}()

		resp, err = handler(ctx, req)
		err = toStatus(err)
		duration := time.Since(start)
		if err != nil {
			logger.Warn("grpc unary call finished", zap.String("method", info.FullMethod), zap.Duration("duration", duration), zap.Error(err))
		} else {
			logger.Info("grpc unary call finished", zap.String("method", info.FullMethod), zap.Duration("duration", duration))
		}
		return resp, err
	}
}

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return status.Error(appErr.GRPCCode(), appErr.Message())
	}
	return status.Error(codes.Internal, "internal error")
}

// NewServer builds a gRPC server with logging interceptors and the standard
// health service.
func NewServer(logger *zap.Logger, hs *health.Server) *grpc.Server {
	stream := func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := toStatus(handler(srv, ss))
		duration := time.Since(start)
		if err != nil {
			logger.Warn("grpc stream call finished", zap.String("method", info.FullMethod), zap.Duration("duration", duration), zap.Error(err))
		} else {
			logger.Info("grpc stream call finished", zap.String("method", info.FullMethod), zap.Duration("duration", duration))
		}
		return err
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryInterceptor(logger)),
		grpc.ChainStreamInterceptor(stream),
	)
	healthpb.RegisterHealthServer(server, hs)
	return server
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter mirrors database reachability into the gRPC health
// service.
type HealthReporter struct {
	hs     *health.Server
	db     Pinger
	logger *zap.Logger
	last   healthpb.HealthCheckResponse_ServingStatus
}

// NewHealthReporter builds a reporter. A nil db always reports serving.
func NewHealthReporter(hs *health.Server, db Pinger, logger *zap.Logger) *HealthReporter {
	return &HealthReporter{hs: hs, db: db, logger: logger}
}

// Check pings the database once and updates the health status.
func (r *HealthReporter) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if r.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := r.db.Ping(pingCtx)
		cancel()
		if err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			if r.last != st {
				r.logger.Warn("database unreachable; reporting not serving", zap.Error(err))
			}
		} else if r.last == healthpb.HealthCheckResponse_NOT_SERVING {
			r.logger.Info("database reachable again")
		}
	}
	r.last = st
	r.hs.SetServingStatus("", st)
	r.hs.SetServingStatus(OrdersService, st)
	return st
}

// Watch re-checks every interval until ctx ends.
func (r *HealthReporter) Watch(ctx context.Context, interval time.Duration) {
	r.Check(ctx)
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Check(ctx)
		}
	}
}

// RunParams lists the lifecycle dependencies of the gRPC server.
type RunParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Server    *grpc.Server
	Health    *health.Server
	Database  *database.Connections `optional:"true"`
	Logger    *zap.Logger
}

// Run binds the gRPC server to the configured host/port and manages lifecycle.
func Run(p RunParams) {
	cfg, server, hs, logger := p.Config, p.Server, p.Health, p.Logger
	addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
	var listener net.Listener

	var db Pinger
	if p.Database != nil {
		db = p.Database
	}
	reporter := NewHealthReporter(hs, db, logger)
	watchCtx, stopWatch := context.WithCancel(context.Background())

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				stopWatch()
				return fmt.Errorf("listen grpc: %w", err)
			}
			listener = ln
			go reporter.Watch(watchCtx, cfg.GRPC.HealthInterval)
			logger.Info("starting gRPC server", zap.String("addr", addr))
			go func() {
				if err := server.Serve(listener); err != nil {
					logger.Fatal("grpc server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping gRPC server")
			stopWatch()
			hs.Shutdown()
			stopped := make(chan struct{})
			go func() {
				server.GracefulStop()
				close(stopped)
			}()

			select {
			case <-ctx.Done():
				server.Stop()
				return ctx.Err()
			case <-stopped:
				if listener != nil {
					_ = listener.Close()
				}
				return nil
			}
		},
	})
}
