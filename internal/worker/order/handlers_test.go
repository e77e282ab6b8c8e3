package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/internal/cache"
	"github.com/Additional-Code/hatch/internal/notify"
)

type MockStore struct{ mock.Mock }

func (m *MockStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func TestBridge_DispatchesToLocalSubscribers(t *testing.T) {
	hub := notify.NewHub(nil, zap.NewNop())
	var got []notify.Event
	hub.Subscribe("test", notify.SubscriberFunc(func(_ context.Context, evt notify.Event) {
		got = append(got, evt)
	}))

	reg := NewBridge(hub, zap.NewNop())
	require.NoError(t, reg.Handler(t.Context(), notify.OrderUpdate(8)))

	require.Len(t, got, 1)
	assert.Equal(t, int64(8), got[0].OrderID)
	assert.Equal(t, notify.TypeOrderUpdate, reg.EventType)
}

func TestCacheInvalidator(t *testing.T) {
	store := new(MockStore)
	store.On("Delete", mock.Anything, cache.OrderKey(4)).Return(nil).Once()
	store.On("Delete", mock.Anything, cache.OrderKey(5)).Return(cache.ErrCacheMiss).Once()
	store.On("Delete", mock.Anything, cache.OrderKey(6)).Return(errors.New("connection reset")).Once()

	reg := NewCacheInvalidator(store, zap.NewNop())

	assert.NoError(t, reg.Handler(t.Context(), notify.OrderUpdate(4)))
	assert.NoError(t, reg.Handler(t.Context(), notify.OrderUpdate(5)))
	assert.Error(t, reg.Handler(t.Context(), notify.OrderUpdate(6)))
	store.AssertExpectations(t)
}
