// Package core defines the ports of the entity metrics cache: the contracts between the
// service layer and the Redis and Postgres adapters in internal/data.
package core

import (
	"context"
	"time"
)

// CacheRepository defines the interface for generic key/value caching operations.
// This follows the hexagonal architecture pattern where the core defines interfaces
// and the data layer provides implementations.
type CacheRepository interface {
	// SetIfNotExists atomically sets a key only if it doesn't already exist.
	// Returns true if the key was set, false if it already existed.
	// The key always carries a TTL; non-positive values are clamped by the implementation.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes the given keys and returns how many existed.
	Delete(ctx context.Context, keys ...string) (int64, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}
