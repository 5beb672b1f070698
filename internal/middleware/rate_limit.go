package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/redis/go-redis/v9"
)

const rateLimitMessage = "Too many OTP requests, try again later."

// SendOTPRateLimit limits OTP requests per number, falling back to the client IP
// when no number is given. Counters live in Redis when available and in
// process memory otherwise.
func SendOTPRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	if cache == nil {
		return limiter.New(limiter.Config{
			Max:          maxPerMin,
			Expiration:   time.Minute,
			KeyGenerator: rateLimitKey,
			LimitReached: func(*fiber.Ctx) error {
				return fiber.NewError(http.StatusTooManyRequests, rateLimitMessage)
			},
		})
	}
	return func(c *fiber.Ctx) error {
		key := "rl:send-otp:" + rateLimitKey(c)
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, rateLimitMessage)
		}
		return c.Next()
	}
}

func rateLimitKey(c *fiber.Ctx) string {
	if number := strings.TrimSpace(c.Query("number")); number != "" {
		return number
	}
	return c.IP()
}
