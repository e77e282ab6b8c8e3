package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// OrderKey is the cache key of a single order.
func OrderKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

// MenuKey is the cache key of a filtered menu listing.
func MenuKey(categoryID int64, availableOnly bool) string {
	return fmt.Sprintf("menu:items:%d:%t", categoryID, availableOnly)
}

// GetJSON decodes the cached value at key into dst.
func GetJSON(ctx context.Context, s Store, key string, dst any) error {
	if s == nil {
		return ErrCacheMiss
	}
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	if s == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, raw, ttl)
}
