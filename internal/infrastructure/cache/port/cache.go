package port

import (
	"context"
	"time"
)

// Cache is the minimal key-value contract used to memoize upstream lookups
// (user roles, public profiles). Implementations must be concurrency-safe.
// Values are strings; serialization is the caller's concern.
type Cache interface {
	// Get returns the value for key, or ErrMiss when the key is absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key. Zero or negative TTL means no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Del removes keys and returns how many were present.
	Del(ctx context.Context, keys ...string) (int64, error)

	// Ping verifies connectivity with the backend.
	Ping(ctx context.Context) error

	Close() error
}

// ErrMiss signals an absent key, distinct from transport errors.
var ErrMiss = errMiss{}

type errMiss struct{}

func (errMiss) Error() string { return "cache: miss" }
