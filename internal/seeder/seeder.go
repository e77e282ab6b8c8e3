package seeder

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jaswdr/faker"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/internal/database"
	"github.com/Additional-Code/hatch/internal/entity"
)

// Module provides the Seeder.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
	fake   faker.Faker
	now    func() time.Time
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger, fake: faker.New(), now: time.Now}
}

type dish struct {
	name       string
	price      string
	vegetarian bool
	vegan      bool
	glutenFree bool
}

type section struct {
	name   string
	dishes []dish
}

var menu = []section{
	{"Pizza", []dish{
		{"Margherita", "5.00", true, false, false},
		{"Pepperoni", "7.50", false, false, false},
		{"Garden Vegan", "7.00", true, true, false},
	}},
	{"Sides", []dish{
		{"Garlic bread", "3.50", true, false, false},
		{"Fries", "2.80", true, true, true},
		{"Chicken wings", "4.90", false, false, true},
	}},
	{"Drinks", []dish{
		{"Cola", "1.80", true, true, true},
		{"Sparkling water", "1.20", true, true, true},
	}},
}

// All seeds every fixture.
func (s *Seeder) All(ctx context.Context, drivers int) error {
	if err := s.Menu(ctx); err != nil {
		return err
	}
	return s.Drivers(ctx, drivers)
}

// Menu seeds categories and items when the menu is empty.
func (s *Seeder) Menu(ctx context.Context) error {
	exists, err := s.db.NewSelect().Model((*entity.MenuCategory)(nil)).Exists(ctx)
	if err != nil {
		return fmt.Errorf("check menu: %w", err)
	}
	if exists {
		s.logger.Info("menu already present; skipping")
		return nil
	}

	now := s.now().UTC()
	items := 0
	err = s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for i, sec := range menu {
			category := &entity.MenuCategory{Name: sec.name, SortOrder: i + 1}
			if _, err := tx.NewInsert().Model(category).Returning("id").Exec(ctx); err != nil {
				return fmt.Errorf("insert category %s: %w", sec.name, err)
			}
			for _, d := range sec.dishes {
				item := &entity.MenuItem{
					CategoryID:   category.ID,
					Name:         d.name,
					Description:  s.fake.Lorem().Sentence(8),
					Price:        decimal.RequireFromString(d.price),
					IsAvailable:  true,
					IsVegetarian: d.vegetarian,
					IsVegan:      d.vegan,
					IsGlutenFree: d.glutenFree,
					CreatedAt:    now,
					UpdatedAt:    now,
				}
				if _, err := tx.NewInsert().Model(item).Exec(ctx); err != nil {
					return fmt.Errorf("insert menu item %s: %w", d.name, err)
				}
				items++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("seeded menu", zap.Int("categories", len(menu)), zap.Int("items", items))
	return nil
}

// Drivers seeds n drivers with generated names when none exist.
func (s *Seeder) Drivers(ctx context.Context, n int) error {
	count, err := s.db.NewSelect().Model((*entity.Driver)(nil)).Count(ctx)
	if err != nil {
		return fmt.Errorf("count drivers: %w", err)
	}
	if count > 0 || n <= 0 {
		s.logger.Info("drivers already present; skipping", zap.Int("count", count))
		return nil
	}

	drivers := s.generateDrivers(n)
	if _, err := s.db.NewInsert().Model(&drivers).Exec(ctx); err != nil {
		return fmt.Errorf("insert drivers: %w", err)
	}

	s.logger.Info("seeded drivers", zap.Int("count", len(drivers)))
	return nil
}

func (s *Seeder) generateDrivers(n int) []entity.Driver {
	now := s.now().UTC()
	drivers := make([]entity.Driver, 0, n)
	for i := 0; i < n; i++ {
		drivers = append(drivers, entity.Driver{
			Name:        s.fake.Person().Name(),
			Phone:       s.fake.Phone().Number(),
			IsAvailable: i%3 != 2,
			Earnings:    decimal.Zero,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return drivers
}
