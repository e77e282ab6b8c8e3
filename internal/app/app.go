package app

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/Additional-Code/hatch/internal/cache"
	"github.com/Additional-Code/hatch/internal/config"
	"github.com/Additional-Code/hatch/internal/database"
	"github.com/Additional-Code/hatch/internal/logger"
	"github.com/Additional-Code/hatch/internal/messaging"
	"github.com/Additional-Code/hatch/internal/notify"
	"github.com/Additional-Code/hatch/internal/observability"
	"github.com/Additional-Code/hatch/internal/payment"
	repositorydriver "github.com/Additional-Code/hatch/internal/repository/driver"
	repositorymenu "github.com/Additional-Code/hatch/internal/repository/menu"
	repositoryorder "github.com/Additional-Code/hatch/internal/repository/order"
	repositorypayment "github.com/Additional-Code/hatch/internal/repository/payment"
	grpcserver "github.com/Additional-Code/hatch/internal/server/grpc"
	httpserver "github.com/Additional-Code/hatch/internal/server/http"
	servicedriver "github.com/Additional-Code/hatch/internal/service/driver"
	servicemenu "github.com/Additional-Code/hatch/internal/service/menu"
	serviceorder "github.com/Additional-Code/hatch/internal/service/order"
	servicepayment "github.com/Additional-Code/hatch/internal/service/payment"
	transporthttp "github.com/Additional-Code/hatch/internal/transport/http"
	"github.com/Additional-Code/hatch/internal/worker"
	workerorder "github.com/Additional-Code/hatch/internal/worker/order"
	"github.com/Additional-Code/hatch/internal/worker/sweep"
)

// Base holds what every process needs, including ones without a database.
var Base = fx.Options(
	config.Module,
	logger.Module,
	observability.Module,
	messaging.Module,
	notify.Module,
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	Base,
	cache.Module,
	database.Module,
	repositoryorder.Module,
	repositorydriver.Module,
	repositorymenu.Module,
	repositorypayment.Module,
	payment.Module,
	serviceorder.Module,
	servicedriver.Module,
	servicemenu.Module,
	servicepayment.Module,
)

// HTTP wires the HTTP and gRPC servers on top of the core modules.
var HTTP = fx.Options(
	Core,
	As("api"),
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	As("worker"),
	worker.Module,
	workerorder.Module,
	sweep.Module,
)

// View relays bus events to a terminal view so it refreshes early. Each view
// joins its own consumer group so it sees every event.
var View = fx.Options(
	Base,
	fx.Decorate(func(cfg config.Config) config.Config {
		cfg.Observability.Process = "view"
		cfg.Messaging.ConsumerGroup = fmt.Sprintf("%s-view-%s", cfg.Messaging.ConsumerGroup, uuid.NewString()[:8])
		cfg.Messaging.Kafka.StartOffset = "last"
		return cfg
	}),
	worker.Module,
	workerorder.BridgeModule,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP

// As overrides the process role recorded in logs and telemetry.
func As(process string) fx.Option {
	return fx.Decorate(func(cfg config.Config) config.Config {
		cfg.Observability.Process = process
		return cfg
	})
}
