package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestTimeout attaches a caller-supplied deadline to the request
// context. Clients set the X-Request-Timeout header (milliseconds);
// handlers that outlive the deadline answer 503 instead of hanging.
// maxTimeout caps what a client may ask for.
func RequestTimeout(maxTimeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ms := c.Get("X-Request-Timeout")
		if ms == "" {
			ms = c.Query("timeoutMs")
		}
		if ms == "" {
			return c.Next()
		}

		requested, err := time.ParseDuration(ms + "ms")
		if err != nil || requested <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "X-Request-Timeout must be a positive number of milliseconds",
			})
		}
		if maxTimeout > 0 && requested > maxTimeout {
			requested = maxTimeout
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), requested)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}
