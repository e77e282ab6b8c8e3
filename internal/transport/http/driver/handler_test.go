package driver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/hatch/internal/entity"
	service "github.com/Additional-Code/hatch/internal/service/driver"
	"github.com/Additional-Code/hatch/pkg/errorbank"
)

type MockDriverService struct{ mock.Mock }

func (m *MockDriverService) Get(ctx context.Context, id int64) (*entity.Driver, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Driver), args.Error(1)
}

func (m *MockDriverService) List(ctx context.Context, available *bool) ([]*entity.Driver, error) {
	args := m.Called(ctx, available)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Driver), args.Error(1)
}

func (m *MockDriverService) SetAvailability(ctx context.Context, id int64, available bool) (*entity.Driver, error) {
	args := m.Called(ctx, id, available)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Driver), args.Error(1)
}

func (m *MockDriverService) UpdateLocation(ctx context.Context, id int64, loc service.Location) (*entity.Driver, error) {
	args := m.Called(ctx, id, loc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Driver), args.Error(1)
}

func (m *MockDriverService) Rate(ctx context.Context, id int64, score int) (*entity.Driver, error) {
	args := m.Called(ctx, id, score)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Driver), args.Error(1)
}

func send(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSetAvailability_RequiresFlag(t *testing.T) {
	e := echo.New()
	svc := new(MockDriverService)
	Register(e, &Handler{svc: svc})

	rec := send(e, http.MethodPut, "/drivers/2/availability", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.On("SetAvailability", mock.Anything, int64(2), false).Return(&entity.Driver{ID: 2}, nil)
	rec = send(e, http.MethodPut, "/drivers/2/availability", `{"available":false}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestUpdateLocation(t *testing.T) {
	e := echo.New()
	svc := new(MockDriverService)
	Register(e, &Handler{svc: svc})

	svc.On("UpdateLocation", mock.Anything, int64(2), mock.MatchedBy(func(loc service.Location) bool {
		return loc.Latitude == 51.5 && loc.Longitude == -0.12 && loc.Accuracy == nil
	})).Return(&entity.Driver{ID: 2}, nil)

	rec := send(e, http.MethodPut, "/drivers/2/location", `{"latitude":51.5,"longitude":-0.12}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = send(e, http.MethodPut, "/drivers/2/location", `{"latitude":51.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRate_PropagatesValidation(t *testing.T) {
	e := echo.New()
	svc := new(MockDriverService)
	Register(e, &Handler{svc: svc})

	svc.On("Rate", mock.Anything, int64(2), 9).Return(nil, errorbank.InvalidArgument("rating must be between 1 and 5"))

	rec := send(e, http.MethodPost, "/drivers/2/rating", `{"rating":9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_argument")
}
