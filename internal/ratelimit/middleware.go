package ratelimit

import (
	"context"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/marketplace-accounts/pkg/util"
)

// Limiter admits or refuses a request identified by key.
type Limiter interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (*Result, error)
}

// PerClientIP limits a route per remote address. Limiter errors let the request through.
func PerClientIP(limiter Limiter, scope string, rate float64, burst int, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limiter == nil || rate <= 0 || burst <= 0 {
			return c.Next()
		}

		res, err := limiter.Allow(c.UserContext(), "ratelimit:"+scope+":"+c.IP(), rate, burst)
		if err != nil {
			logger.Warn("rate limiter unavailable; allowing request",
				zap.String("scope", scope),
				zap.Error(err))
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			return apperrors.NewTooManyRequests("too many requests")
		}
		return c.Next()
	}
}
