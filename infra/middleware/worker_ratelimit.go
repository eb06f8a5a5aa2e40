package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"nittei/core/port/out"
	"nittei/pkg/apperr"
)

// RateLimitConfig controls the fixed-window limiter's request budget.
type RateLimitConfig struct {
	Limit  int // requests allowed per Window
	Window time.Duration
}

// DefaultRateLimitConfig matches spec.md §6's per-account default.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Limit: 600, Window: time.Minute}
}

// RateLimit enforces a fixed-window request budget per caller (spec.md §6),
// keyed on the account AccountAuth already resolved, or the client IP for
// routes that run before any auth middleware. The window's counter lives in
// Redis via out.Cache so the limit holds across every process in a
// deployment, not just the one handling this request.
func RateLimit(cache out.Cache, cfg RateLimitConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		key := rateLimitKey(c, cfg.Window)
		ctx := c.Context()

		count, err := cache.Increment(ctx, key)
		if err != nil {
			return apperr.StorageUnavailable("rate limit counter", err)
		}
		if count == 1 {
			if err := cache.Expire(ctx, key, cfg.Window); err != nil {
				return apperr.StorageUnavailable("rate limit counter", err)
			}
		}

		remaining := cfg.Limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.Limit))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if count > int64(cfg.Limit) {
			c.Set("Retry-After", fmt.Sprintf("%d", int(cfg.Window.Seconds())))
			return apperr.RateLimited("")
		}

		return c.Next()
	}
}

// rateLimitKey buckets requests into the current window so a window's
// counter key naturally expires rather than needing a rolling sweep.
func rateLimitKey(c *fiber.Ctx, window time.Duration) string {
	bucket := time.Now().Unix() / int64(window.Seconds())

	if account := AccountFromCtx(c); account != nil {
		return fmt.Sprintf("ratelimit:account:%s:%d", account.ID, bucket)
	}
	return fmt.Sprintf("ratelimit:ip:%s:%d", c.IP(), bucket)
}
