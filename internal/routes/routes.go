package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/otpmd/otpmd/internal/config"
	"github.com/otpmd/otpmd/internal/gateway"
	"github.com/otpmd/otpmd/internal/metrics"
	"github.com/otpmd/otpmd/internal/middleware"
	"github.com/otpmd/otpmd/internal/session"
)

// SessionState reports the messaging connection state.
type SessionState interface {
	State() session.State
}

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Logger  *slog.Logger
	Gateway *gateway.Handler
	Session SessionState
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Gateway == nil {
		return fmt.Errorf("gateway handler is required")
	}
	if d.Session == nil {
		return fmt.Errorf("session state is required")
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger, "/metrics", "/healthz", "/events"))

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	RegisterStatusRoutes(app)
	RegisterGatewayRoutes(app, d.Gateway, middleware.SendOTPRateLimit(d.Cache, d.Cfg.SendOTPRateLimit))

	return nil
}
