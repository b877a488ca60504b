// Package cache stores rendered summaries and other derived values with a TTL.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dairy-market-lab/internal/observability"
)

// Cache is a byte-oriented key/value store with per-entry TTL.
type Cache interface {
	// Get returns the value for key. ok is false on a miss or expired entry.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key. A zero ttl keeps the entry until evicted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Close releases resources held by the cache.
	Close() error
}

// GetJSON decodes a cached JSON value into dst and records the lookup.
func GetJSON(ctx context.Context, c Cache, name, key string, dst any) (bool, error) {
	data, ok, err := c.Get(ctx, key)
	if err != nil {
		return false, err
	}
	observability.RecordCacheLookup(name, ok)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("unmarshal cached %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v as JSON and stores it.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache value %s: %w", key, err)
	}
	return c.Set(ctx, key, data, ttl)
}
