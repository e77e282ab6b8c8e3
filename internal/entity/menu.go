package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// MenuCategory groups menu items for display.
type MenuCategory struct {
	bun.BaseModel `bun:"table:menu_categories,alias:mc"`

	ID        int64  `bun:",pk,autoincrement"`
	Name      string `bun:"name,notnull"`
	SortOrder int    `bun:"sort_order,notnull"`
}

// MenuItem is an item currently offered for sale.
type MenuItem struct {
	bun.BaseModel `bun:"table:menu_items,alias:mi"`

	ID           int64           `bun:",pk,autoincrement"`
	CategoryID   int64           `bun:"category_id,notnull"`
	Name         string          `bun:"name,notnull"`
	Description  string          `bun:"description,nullzero"`
	Price        decimal.Decimal `bun:"price,type:numeric(10,2),notnull"`
	IsAvailable  bool            `bun:"is_available,notnull"`
	IsVegetarian bool            `bun:"is_vegetarian,notnull"`
	IsVegan      bool            `bun:"is_vegan,notnull"`
	IsGlutenFree bool            `bun:"is_gluten_free,notnull"`
	CreatedAt    time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time       `bun:"updated_at,nullzero"`

	Category *MenuCategory `bun:"rel:belongs-to,join:category_id=id"`
}
