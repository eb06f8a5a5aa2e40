package out

import (
	"context"
	"time"
)

// Cache is the generic key/value port backing the free/busy response cache
// and the per-account/per-IP rate limiter (pkg/cache, backed by Redis).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Increment and Expire back infra/middleware's fixed-window rate
	// limiter: Increment atomically bumps a window's request counter,
	// Expire bounds that counter to the window once it's first created.
	Increment(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}
