//go:build integration

package order_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/internal/config"
	"github.com/Additional-Code/hatch/internal/database"
	"github.com/Additional-Code/hatch/internal/domain/status"
	"github.com/Additional-Code/hatch/internal/entity"
	"github.com/Additional-Code/hatch/internal/migration"
	repo "github.com/Additional-Code/hatch/internal/repository/order"
)

type RepositoryIntegrationSuite struct {
	suite.Suite
	container *postgres.PostgresContainer
	lc        *fxtest.Lifecycle
	conns     *database.Connections
	repo      *repo.Repository
}

func TestRepositoryIntegration(t *testing.T) {
	suite.Run(t, new(RepositoryIntegrationSuite))
}

func (s *RepositoryIntegrationSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("hatch"),
		postgres.WithUsername("hatch"),
		postgres.WithPassword("hatch"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	cfg := config.Config{Database: config.Database{
		Driver:       "postgres",
		WriterDSN:    dsn,
		ReaderDSN:    dsn,
		MaxOpenConns: 5,
		MaxIdleConns: 5,
	}}

	s.lc = fxtest.NewLifecycle(s.T())
	conns, err := database.New(s.lc, cfg, zap.NewNop())
	s.Require().NoError(err)
	s.lc.RequireStart()
	s.conns = conns

	mig, err := migration.New(cfg, conns, zap.NewNop())
	s.Require().NoError(err)
	s.Require().NoError(mig.Up(ctx))

	s.repo = repo.NewRepository(conns)
}

func (s *RepositoryIntegrationSuite) SetupTest() {
	_, err := s.conns.Writer.ExecContext(context.Background(),
		"TRUNCATE TABLE order_status_log, payments, order_items, orders, drivers RESTART IDENTITY CASCADE")
	s.Require().NoError(err)
}

func (s *RepositoryIntegrationSuite) TearDownSuite() {
	if s.lc != nil {
		s.lc.RequireStop()
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(context.Background()))
	}
}

func format(seq int64) string { return fmt.Sprintf("ST-%03d", seq) }

func newOrder(at time.Time) *entity.Order {
	return &entity.Order{
		CustomerName:  "Ada Lovelace",
		Type:          status.Collection,
		Status:        status.Pending,
		PaymentStatus: status.PaymentPending,
		Subtotal:      decimal.RequireFromString("13.50"),
		Tax:           decimal.Zero,
		DeliveryFee:   decimal.RequireFromString("2.50"),
		Total:         decimal.RequireFromString("16.00"),
		CreatedAt:     at,
		UpdatedAt:     at,
		Items: []*entity.OrderItem{
			{Name: "Margherita", UnitPrice: decimal.RequireFromString("5.00"), Quantity: 2, LineTotal: decimal.RequireFromString("10.00")},
			{Name: "Garlic bread", UnitPrice: decimal.RequireFromString("3.50"), Quantity: 1, LineTotal: decimal.RequireFromString("3.50")},
		},
	}
}

func (s *RepositoryIntegrationSuite) TestCreate_AssignsSequentialNumbers() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	first, second := newOrder(now), newOrder(now)
	s.Require().NoError(s.repo.Create(ctx, first, format))
	s.Require().NoError(s.repo.Create(ctx, second, format))

	s.Equal("ST-001", first.Number)
	s.Equal("ST-002", second.Number)

	stored, err := s.repo.GetByID(ctx, first.ID)
	s.Require().NoError(err)
	s.True(stored.Total.Equal(decimal.RequireFromString("16")))
	s.Require().Len(stored.Items, 2)
	s.Equal("Margherita", stored.Items[0].Name)
}

func (s *RepositoryIntegrationSuite) TestCreate_ConcurrentCollisionIsUniqueViolation() {
	ctx := context.Background()
	now := time.Now().UTC()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.repo.Create(ctx, newOrder(now), format)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			s.True(database.IsUniqueViolation(err), "unexpected error: %v", err)
		}
	}
}

func (s *RepositoryIntegrationSuite) TestUpdateStatus_WritesAuditEntry() {
	ctx := context.Background()
	created := time.Now().UTC().Add(-time.Minute).Truncate(time.Millisecond)
	order := newOrder(created)
	s.Require().NoError(s.repo.Create(ctx, order, format))

	driver := &entity.Driver{Name: "Grace", IsAvailable: true, Earnings: decimal.Zero, CreatedAt: created, UpdatedAt: created}
	_, err := s.conns.Writer.NewInsert().Model(driver).Exec(ctx)
	s.Require().NoError(err)

	at := created.Add(time.Minute)
	s.Require().NoError(s.repo.UpdateStatus(ctx, repo.StatusChange{
		OrderID:  order.ID,
		From:     status.Pending,
		To:       status.OutForDelivery,
		DriverID: &driver.ID,
		StaffID:  "till-1",
		At:       at,
	}))

	stored, err := s.repo.GetFromPrimary(ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(status.OutForDelivery, stored.Status)
	s.Require().NotNil(stored.DriverID)
	s.Equal(driver.ID, *stored.DriverID)
	s.True(stored.UpdatedAt.Equal(at))

	history, err := s.repo.History(ctx, order.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(status.Pending, history[0].FromStatus)
	s.Equal("till-1", history[0].StaffID)

	err = s.repo.UpdateStatus(ctx, repo.StatusChange{OrderID: 999, From: status.Pending, To: status.Confirmed, At: at})
	s.ErrorIs(err, repo.ErrNotFound)
}

func (s *RepositoryIntegrationSuite) TestUpdateStatus_DeliveryCreditsDriverOnce() {
	ctx := context.Background()
	created := time.Now().UTC().Add(-time.Minute).Truncate(time.Millisecond)
	order := newOrder(created)
	s.Require().NoError(s.repo.Create(ctx, order, format))

	driver := &entity.Driver{Name: "Grace", IsAvailable: true, Earnings: decimal.RequireFromString("10.00"), CreatedAt: created, UpdatedAt: created}
	_, err := s.conns.Writer.NewInsert().Model(driver).Exec(ctx)
	s.Require().NoError(err)

	at := created.Add(time.Minute)
	s.Require().NoError(s.repo.UpdateStatus(ctx, repo.StatusChange{
		OrderID: order.ID, From: status.Pending, To: status.OutForDelivery, DriverID: &driver.ID, At: at,
	}))
	for i := 0; i < 2; i++ {
		from := status.OutForDelivery
		if i > 0 {
			from = status.Delivered
		}
		s.Require().NoError(s.repo.UpdateStatus(ctx, repo.StatusChange{
			OrderID: order.ID, From: from, To: status.Delivered, At: at.Add(time.Minute),
		}))
	}

	stored := new(entity.Driver)
	s.Require().NoError(s.conns.Writer.NewSelect().Model(stored).Where("d.id = ?", driver.ID).Scan(ctx))
	s.Equal(1, stored.DeliveryCount)
	s.Equal("12.50", stored.Earnings.StringFixed(2))
}

func (s *RepositoryIntegrationSuite) TestListAndCount() {
	ctx := context.Background()
	old := time.Now().UTC().Add(-time.Hour)
	fresh := time.Now().UTC()

	late := newOrder(old)
	s.Require().NoError(s.repo.Create(ctx, late, format))
	s.Require().NoError(s.repo.Create(ctx, newOrder(fresh), format))

	done := newOrder(old)
	done.Status = status.Delivered
	s.Require().NoError(s.repo.Create(ctx, done, format))

	pending, err := s.repo.List(ctx, repo.ListFilter{Statuses: []status.Order{status.Pending}})
	s.Require().NoError(err)
	s.Len(pending, 2)

	byNumber, err := s.repo.List(ctx, repo.ListFilter{OrderNumber: late.Number})
	s.Require().NoError(err)
	s.Require().Len(byNumber, 1)
	s.Equal(late.ID, byNumber[0].ID)

	n, err := s.repo.CountCreatedBefore(ctx, status.Active(), fresh.Add(-15*time.Minute))
	s.Require().NoError(err)
	s.Equal(1, n)
}
