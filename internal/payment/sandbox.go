package payment

import (
	"context"

	"github.com/google/uuid"
)

// DeclineToken makes the sandbox gateway refuse a charge.
const DeclineToken = "tok_decline"

// Sandbox approves every charge except those using DeclineToken.
type Sandbox struct{}

// NewSandbox returns an in-process gateway for development and tests.
func NewSandbox() *Sandbox { return &Sandbox{} }

func (*Sandbox) Provider() string { return "sandbox" }

func (*Sandbox) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return ChargeResult{}, err
	}
	if !req.Amount.IsPositive() {
		return ChargeResult{Message: "amount must be positive"}, nil
	}
	if req.Token == DeclineToken {
		return ChargeResult{Message: "card declined"}, nil
	}
	return ChargeResult{
		Success:       true,
		TransactionID: "sbx_" + uuid.NewString(),
		Message:       "approved",
	}, nil
}
