package port

import (
	"context"
	"time"
)

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency drops a key so the same request can be retried
	ReleaseIdempotency(ctx context.Context, key string) error

	// GetJSON decodes the cached value into dst, returns false on a miss
	GetJSON(ctx context.Context, key string, dst any) (bool, error)

	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}
