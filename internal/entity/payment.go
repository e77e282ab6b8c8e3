package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/Additional-Code/hatch/internal/domain/status"
)

// Payment records a single charge attempt against an order.
type Payment struct {
	bun.BaseModel `bun:"table:payments,alias:p"`

	ID            int64           `bun:",pk,autoincrement"`
	OrderID       int64           `bun:"order_id,notnull"`
	Provider      string          `bun:"provider,notnull"`
	Amount        decimal.Decimal `bun:"amount,type:numeric(10,2),notnull"`
	Currency      string          `bun:"currency,notnull"`
	Status        status.Payment  `bun:"status,notnull"`
	TransactionID string          `bun:"transaction_id,nullzero"`
	Message       string          `bun:"message,nullzero"`
	CreatedAt     time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
