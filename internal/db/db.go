// Package db defines the cache-store contract shared by the result and
// embedding caches.
package db

import (
	"context"
	"time"
)

// Store is the cache-store facade: connectivity plus the operations the
// caches issue.
type Store interface {
	Pinger
	KVStore
	KeyStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore reads and writes single values.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// SetWithTTL stores value; ttl <= 0 stores it without expiry.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
}

// KeyStore removes groups of keys.
type KeyStore interface {
	// DeleteMatching removes every key matching a glob pattern and reports
	// how many were removed.
	DeleteMatching(ctx context.Context, pattern string) (int, error)
}
