package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent or expired. Consumers must treat
// a miss as "unknown/stale", never as a zero value.
var ErrMiss = errors.New("cache: key missing or expired")

// Store is the shared-state store between the analytics components. Each
// component writes only its own keys; any component may read any key.
// Writes replace the whole value atomically.
type Store interface {
	// Get unmarshals the value at key into dest, or returns ErrMiss
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores value under key with the given TTL. A non-positive TTL
	// means the key does not expire.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Delete removes keys
	Delete(ctx context.Context, keys ...string) error
	// Close releases store resources
	Close() error
}
