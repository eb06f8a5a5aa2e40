package middleware

import "github.com/gofiber/fiber/v2"

// NoCache marks every response as private and non-cacheable: calendar and
// availability data is both tenant-scoped and mutated outside the request
// cycle (bookings from other callers), so a shared or stale cached response
// would leak across accounts or show slots that are no longer free.
func NoCache() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "no-store")
		return c.Next()
	}
}
