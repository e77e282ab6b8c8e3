package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/internal/config"
)

func TestNewStore_Noop(t *testing.T) {
	cfg := config.Config{Cache: config.Cache{Driver: "noop"}}
	store, err := NewStore(fxtest.NewLifecycle(t), cfg, zap.NewNop())
	require.NoError(t, err)

	_, err = store.Get(t.Context(), OrderKey(1))
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.NoError(t, store.Set(t.Context(), OrderKey(1), []byte("{}"), 0))
	assert.NoError(t, store.Delete(t.Context(), OrderKey(1)))
}

func TestNewStore_UnknownDriver(t *testing.T) {
	_, err := NewStore(fxtest.NewLifecycle(t), config.Config{Cache: config.Cache{Driver: "memcached"}}, zap.NewNop())
	assert.Error(t, err)
}

func TestRedisStore_PrefixesKeys(t *testing.T) {
	s := &redisStore{prefix: "hatch:"}
	assert.Equal(t, "hatch:orders:7", s.key(OrderKey(7)))
}

func TestFamily(t *testing.T) {
	assert.Equal(t, "orders", family(OrderKey(3)))
	assert.Equal(t, "menu", family(MenuKey(0, true)))
	assert.Equal(t, "plain", family("plain"))
}
