package storage

import (
	"context"
	"time"
)

// KeyValueStore is a TTL-capable key-value store shared by all instances.
// Entries vanish once their TTL elapses.
type KeyValueStore interface {
	// Get returns the value of key
	// Returns ErrKeyNotFound if the key is absent or expired
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key for ttl. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Incr atomically increments the counter at key. The ttl is applied only
	// when the increment creates the key, which gives fixed windows.
	// Returns the new count and the remaining time to live.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error)

	// Ping checks connectivity
	Ping(ctx context.Context) error

	// Close releases resources
	Close() error
}

// Purger is implemented by stores that do not expire keys on their own.
type Purger interface {
	// PurgeExpired removes expired entries and returns how many were removed
	PurgeExpired(ctx context.Context) (int, error)
}
