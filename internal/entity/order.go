package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/Additional-Code/hatch/internal/domain/status"
)

// Order represents a customer order stored in the relational database.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID              int64            `bun:",pk,autoincrement"`
	Sequence        int64            `bun:"sequence,notnull"`
	Number          string           `bun:"number,notnull"`
	CustomerName    string           `bun:"customer_name,notnull"`
	CustomerEmail   string           `bun:"customer_email,nullzero"`
	CustomerPhone   string           `bun:"customer_phone,nullzero"`
	DeliveryAddress string           `bun:"delivery_address,nullzero"`
	Type            status.OrderType `bun:"type,notnull"`
	Status          status.Order     `bun:"status,notnull"`
	PaymentStatus   status.Payment   `bun:"payment_status,notnull"`
	Subtotal        decimal.Decimal  `bun:"subtotal,type:numeric(10,2),notnull"`
	Tax             decimal.Decimal  `bun:"tax,type:numeric(10,2),notnull"`
	DeliveryFee     decimal.Decimal  `bun:"delivery_fee,type:numeric(10,2),notnull"`
	Total           decimal.Decimal  `bun:"total,type:numeric(10,2),notnull"`
	Notes           string           `bun:"notes,nullzero"`
	DriverID        *int64           `bun:"driver_id"`
	CreatedAt       time.Time        `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time        `bun:"updated_at,nullzero"`

	Items    []*OrderItem `bun:"rel:has-many,join:id=order_id"`
	Driver   *Driver      `bun:"rel:belongs-to,join:driver_id=id"`
	Payments []*Payment   `bun:"rel:has-many,join:id=order_id"`
}

// OrderItem is a snapshot of a menu item taken when the order was placed.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID          int64           `bun:",pk,autoincrement"`
	OrderID     int64           `bun:"order_id,notnull"`
	MenuItemID  *int64          `bun:"menu_item_id"`
	Name        string          `bun:"name,notnull"`
	Description string          `bun:"description,nullzero"`
	UnitPrice   decimal.Decimal `bun:"unit_price,type:numeric(10,2),notnull"`
	Quantity    int             `bun:"quantity,notnull"`
	LineTotal   decimal.Decimal `bun:"line_total,type:numeric(10,2),notnull"`
}

// OrderStatusLog records one accepted status update.
type OrderStatusLog struct {
	bun.BaseModel `bun:"table:order_status_log,alias:osl"`

	ID         int64        `bun:",pk,autoincrement"`
	OrderID    int64        `bun:"order_id,notnull"`
	FromStatus status.Order `bun:"from_status,notnull"`
	ToStatus   status.Order `bun:"to_status,notnull"`
	DriverID   *int64       `bun:"driver_id"`
	StaffID    string       `bun:"staff_id,nullzero"`
	Notes      string       `bun:"notes,nullzero"`
	CreatedAt  time.Time    `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
