package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Driver is a delivery driver and their last reported position.
type Driver struct {
	bun.BaseModel `bun:"table:drivers,alias:d"`

	ID            int64           `bun:",pk,autoincrement"`
	Name          string          `bun:"name,notnull"`
	Phone         string          `bun:"phone,nullzero"`
	IsAvailable   bool            `bun:"is_available,notnull"`
	Latitude      *float64        `bun:"latitude"`
	Longitude     *float64        `bun:"longitude"`
	Accuracy      *float64        `bun:"accuracy"`
	LocatedAt     *time.Time      `bun:"located_at"`
	Rating        float64         `bun:"rating,notnull"`
	RatingCount   int             `bun:"rating_count,notnull"`
	DeliveryCount int             `bun:"delivery_count,notnull"`
	Earnings      decimal.Decimal `bun:"earnings,type:numeric(10,2),notnull"`
	CreatedAt     time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time       `bun:"updated_at,nullzero"`
}
