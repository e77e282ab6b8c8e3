// Package payment charges customers through an external provider. The core
// order flow never waits on a gateway; charges are taken against an order's
// total and recorded alongside it.
package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/internal/config"
)

// ChargeRequest asks the provider to take Amount from the card behind Token.
type ChargeRequest struct {
	Amount    decimal.Decimal
	Currency  string
	Reference string
	Token     string
}

// ChargeResult is the provider's verdict. A declined card is a result with
// Success false, not an error.
type ChargeResult struct {
	Success       bool
	TransactionID string
	Message       string
}

// Gateway is a card payment provider.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	Provider() string
}

// Module provides the configured Gateway to Fx.
var Module = fx.Provide(NewGateway)

// NewGateway selects the gateway implementation named by PAYMENT_DRIVER.
func NewGateway(cfg config.Config, logger *zap.Logger) (Gateway, error) {
	switch cfg.Payment.Driver {
	case "sandbox":
		if logger != nil {
			logger.Info("payment gateway in sandbox mode")
		}
		return NewSandbox(), nil
	case "http":
		return NewHTTPGateway(cfg.Payment, logger), nil
	default:
		return nil, fmt.Errorf("unsupported payment driver: %s", cfg.Payment.Driver)
	}
}
