package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/hatch/internal/config"
	"github.com/Additional-Code/hatch/internal/domain/status"
)

type MockCounter struct{ mock.Mock }

func (m *MockCounter) CountCreatedBefore(ctx context.Context, statuses []status.Order, cutoff time.Time) (int, error) {
	args := m.Called(ctx, statuses, cutoff)
	return args.Int(0), args.Error(1)
}

func newSweeper(t *testing.T, counter Counter, schedule string) (*Sweeper, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)

	cfg := config.Config{}
	cfg.Messaging.Workers.SweepSchedule = schedule
	cfg.Orders.LateAfter = 15 * time.Minute

	s, err := New(counter, cfg, zap.New(core))
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, 6, 1, 19, 0, 0, 0, time.UTC) }
	return s, logs
}

func TestSweep_CountsActiveOrdersPastCutoff(t *testing.T) {
	counter := new(MockCounter)
	counter.On("CountCreatedBefore", mock.Anything, status.Active(), time.Date(2024, 6, 1, 18, 45, 0, 0, time.UTC)).
		Return(3, nil)
	s, logs := newSweeper(t, counter, "@every 1m")

	n, err := s.Sweep(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, logs.FilterMessage("orders running late").Len())
	counter.AssertExpectations(t)
}

func TestSweep_Error(t *testing.T) {
	counter := new(MockCounter)
	counter.On("CountCreatedBefore", mock.Anything, mock.Anything, mock.Anything).Return(0, errors.New("db down"))
	s, _ := newSweeper(t, counter, "@every 1m")

	_, err := s.Sweep(t.Context())
	assert.EqualError(t, err, "db down")
}

func TestStart_RejectsBadSchedule(t *testing.T) {
	s, _ := newSweeper(t, new(MockCounter), "every now and then")
	assert.Error(t, s.Start(t.Context()))
}

func TestStart_EmptyScheduleDisables(t *testing.T) {
	s, logs := newSweeper(t, new(MockCounter), "")
	require.NoError(t, s.Start(t.Context()))
	assert.Equal(t, 1, logs.FilterMessage("late order sweep disabled").Len())
	require.NoError(t, s.Stop(t.Context()))
}
