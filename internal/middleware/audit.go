package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/otpmd/otpmd/internal/logging"
)

// Audit logs one structured record per request. Paths in skip are not logged.
func Audit(logger *slog.Logger, skip ...string) fiber.Handler {
	quiet := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		quiet[p] = struct{}{}
	}
	return func(c *fiber.Ctx) error {
		if _, ok := quiet[c.Path()]; ok {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", c.Response().StatusCode()),
			slog.Duration("duration", time.Since(start)),
			slog.String("ip", c.IP()),
		}
		if number := c.Query("number"); number != "" {
			attrs = append(attrs, slog.String("number", number))
		}
		if requestID := GetRequestID(c); requestID != "" {
			attrs = append(attrs, slog.String("request_id", requestID))
		}
		if err != nil {
			attrs = append(attrs, logging.Err(err))
			logger.Error("request completed", attrs...)
			return err
		}

		logger.Info("request completed", attrs...)
		return nil
	}
}
