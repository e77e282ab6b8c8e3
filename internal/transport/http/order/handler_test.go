package order

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/hatch/internal/domain/status"
	"github.com/Additional-Code/hatch/internal/dto"
	"github.com/Additional-Code/hatch/internal/entity"
	"github.com/Additional-Code/hatch/internal/presentation/http/response"
	service "github.com/Additional-Code/hatch/internal/service/order"
	paymentsvc "github.com/Additional-Code/hatch/internal/service/payment"
	"github.com/Additional-Code/hatch/pkg/errorbank"
)

type MockOrderService struct{ mock.Mock }

func (m *MockOrderService) Create(ctx context.Context, in service.CreateInput) (*entity.Order, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Order), args.Error(1)
}

func (m *MockOrderService) Get(ctx context.Context, id int64) (*entity.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Order), args.Error(1)
}

func (m *MockOrderService) List(ctx context.Context, in service.ListInput) ([]*entity.Order, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Order), args.Error(1)
}

func (m *MockOrderService) History(ctx context.Context, id int64) ([]entity.OrderStatusLog, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.OrderStatusLog), args.Error(1)
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, id int64, in service.UpdateStatusInput) (*entity.Order, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Order), args.Error(1)
}

func (m *MockOrderService) UpdateStatusSimple(ctx context.Context, id int64, raw, staffID, notes string) (*entity.Order, error) {
	args := m.Called(ctx, id, raw, staffID, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Order), args.Error(1)
}

type MockPaymentService struct{ mock.Mock }

func (m *MockPaymentService) Charge(ctx context.Context, orderID int64, in paymentsvc.ChargeInput) (*entity.Payment, error) {
	args := m.Called(ctx, orderID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Payment), args.Error(1)
}

func setup() (*echo.Echo, *MockOrderService, *MockPaymentService) {
	e := echo.New()
	orders, payments := new(MockOrderService), new(MockPaymentService)
	Register(e, &Handler{orders: orders, payments: payments})
	return e, orders, payments
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func sampleOrder() *entity.Order {
	created := time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)
	return &entity.Order{
		ID:            1,
		Number:        "ST-001",
		CustomerName:  "Ada Lovelace",
		Type:          status.Collection,
		Status:        status.Pending,
		PaymentStatus: status.PaymentPending,
		Subtotal:      decimal.RequireFromString("13.50"),
		Tax:           decimal.Zero,
		DeliveryFee:   decimal.RequireFromString("2.50"),
		Total:         decimal.RequireFromString("16"),
		CreatedAt:     created,
		UpdatedAt:     created,
		Items: []*entity.OrderItem{
			{ID: 1, Name: "Margherita", UnitPrice: decimal.RequireFromString("5"), Quantity: 2, LineTotal: decimal.RequireFromString("10")},
		},
	}
}

func TestCreate(t *testing.T) {
	e, orders, _ := setup()
	orders.On("Create", mock.Anything, mock.MatchedBy(func(in service.CreateInput) bool {
		return in.CustomerName == "Ada Lovelace" &&
			len(in.Items) == 2 &&
			in.Items[1].UnitPrice.Equal(decimal.RequireFromString("3.50")) &&
			in.DeliveryFee.Equal(decimal.RequireFromString("2.50"))
	})).Return(sampleOrder(), nil)

	rec := do(e, http.MethodPost, "/orders", `{
		"customerName": "Ada Lovelace",
		"type": "COLLECTION",
		"subtotal": "13.50",
		"tax": 0,
		"deliveryFee": 2.5,
		"items": [
			{"name": "Margherita", "unitPrice": "5.00", "quantity": 2},
			{"name": "Garlic bread", "unitPrice": 3.5, "quantity": 1}
		]
	}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body response.Envelope[dto.OrderResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ST-001", body.Data.Number)
	assert.Equal(t, "16.00", body.Data.Total)
	assert.Equal(t, "10.00", body.Data.Items[0].LineTotal)
	orders.AssertExpectations(t)
}

func TestCreate_MalformedBody(t *testing.T) {
	e, orders, _ := setup()

	rec := do(e, http.MethodPost, "/orders", `{"items": "lots"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestList_ParsesQuery(t *testing.T) {
	e, orders, _ := setup()
	driverID := int64(4)
	orders.On("List", mock.Anything, service.ListInput{
		Statuses: []string{"pending", "confirmed"},
		DriverID: &driverID,
		Limit:    20,
	}).Return([]*entity.Order{sampleOrder()}, nil)

	rec := do(e, http.MethodGet, "/orders?status=pending,%20confirmed&driverId=4&limit=20", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body response.Envelope[[]dto.OrderResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.EqualValues(t, 1, body.Meta["count"])
}

func TestUpdateStatus(t *testing.T) {
	driverID := int64(3)

	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"applied", nil, http.StatusOK, ""},
		{"unknown status", errorbank.InvalidArgument("unrecognised status", errorbank.WithDetail("accepted", []string{"pending"})), http.StatusBadRequest, "invalid_argument"},
		{"missing order", errorbank.NotFound("order not found"), http.StatusNotFound, "not_found"},
		{"driver unavailable", errorbank.FailedPrecondition("driver is not available"), http.StatusUnprocessableEntity, "failed_precondition"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, orders, _ := setup()
			in := service.UpdateStatusInput{Status: "out_for_delivery", DriverID: &driverID, StaffID: "till-1"}
			if tt.err != nil {
				orders.On("UpdateStatus", mock.Anything, int64(1), in).Return(nil, tt.err)
			} else {
				updated := sampleOrder()
				updated.Status = status.OutForDelivery
				updated.DriverID = &driverID
				orders.On("UpdateStatus", mock.Anything, int64(1), in).Return(updated, nil)
			}

			rec := do(e, http.MethodPut, "/orders/1/status", `{"status":"out_for_delivery","driverId":3,"staffId":"till-1"}`)

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			var body response.Envelope[dto.OrderResponse]
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.err == nil {
				assert.Equal(t, "OUT_FOR_DELIVERY", body.Data.Status)
				assert.Equal(t, &driverID, body.Data.DriverID)
				return
			}
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.kind, body.Error.Kind)
		})
	}
}

func TestPatchStatus_UsesSimpleVocabulary(t *testing.T) {
	e, orders, _ := setup()
	updated := sampleOrder()
	updated.Status = status.ReadyForPickup
	orders.On("UpdateStatusSimple", mock.Anything, int64(1), "ready", "", "").Return(updated, nil)

	rec := do(e, http.MethodPatch, "/orders/1/status", `{"status":"ready"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	orders.AssertExpectations(t)
}

func TestGetByID_InvalidID(t *testing.T) {
	e, orders, _ := setup()

	rec := do(e, http.MethodGet, "/orders/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	orders.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestHistory(t *testing.T) {
	e, orders, _ := setup()
	orders.On("History", mock.Anything, int64(1)).Return([]entity.OrderStatusLog{
		{OrderID: 1, FromStatus: status.Pending, ToStatus: status.Preparing, StaffID: "k1"},
	}, nil)

	rec := do(e, http.MethodGet, "/orders/1/history", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body response.Envelope[[]dto.StatusLogResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "PREPARING", body.Data[0].To)
}

func TestCharge(t *testing.T) {
	e, _, payments := setup()
	payments.On("Charge", mock.Anything, int64(1), paymentsvc.ChargeInput{Token: "tok_visa", Currency: "GBP"}).
		Return(&entity.Payment{ID: 9, OrderID: 1, Provider: "sandbox", Amount: decimal.RequireFromString("16"), Currency: "GBP", Status: status.PaymentPaid}, nil)

	rec := do(e, http.MethodPost, "/orders/1/payments", `{"token":"tok_visa","currency":"GBP"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body response.Envelope[dto.PaymentResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "PAID", body.Data.Status)
	assert.Equal(t, "16.00", body.Data.Amount)
}
