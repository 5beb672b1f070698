package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/otpmd/otpmd/internal/broadcast"
	"github.com/otpmd/otpmd/internal/clock"
	"github.com/otpmd/otpmd/internal/config"
	"github.com/otpmd/otpmd/internal/gateway"
	"github.com/otpmd/otpmd/internal/logging"
	"github.com/otpmd/otpmd/internal/notification"
	"github.com/otpmd/otpmd/internal/otp"
	"github.com/otpmd/otpmd/internal/session"
)

type idleSession struct{}

func (idleSession) Client() (session.Client, bool)  { return nil, false }
func (idleSession) Reconnect(context.Context) error { return nil }
func (idleSession) State() session.State            { return session.StateConnecting }

func setupApp(t *testing.T, cache *redis.Client) *fiber.App {
	t.Helper()
	hub := broadcast.NewHub[gateway.Notice](8)
	t.Cleanup(hub.Close)

	store := otp.NewMemoryStore(otp.DefaultTTL, clock.New())
	gw := gateway.New(store, idleSession{}, hub, clock.New(), logging.Discard(), gateway.Options{
		Template: notification.DefaultOTPTemplate("http://localhost:3000/"),
	})
	t.Cleanup(gw.Stop)

	app := fiber.New()
	err := Setup(app, Deps{
		Cfg:     config.Config{SendOTPRateLimit: 2},
		Cache:   cache,
		Logger:  logging.Discard(),
		Gateway: gateway.NewHandler(gw, logging.Discard()),
		Session: idleSession{},
	})
	require.NoError(t, err)
	return app
}

func get(t *testing.T, app *fiber.App, target string) (int, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, target, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestSetupRequiresGateway(t *testing.T) {
	require.Error(t, Setup(fiber.New(), Deps{Session: idleSession{}}))
}

func TestHealthReportsDependencies(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { cache.Close() })
	app := setupApp(t, cache)

	status, body := get(t, app, "/healthz")
	require.Equal(t, fiber.StatusOK, status)

	var payload struct {
		Status map[string]string `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	require.Equal(t, "ok", payload.Status["redis"])
	require.Equal(t, "disabled", payload.Status["postgres"])
	require.Equal(t, "connecting", payload.Status["whatsapp"])

	mr.Close()
	status, _ = get(t, app, "/healthz")
	require.Equal(t, fiber.StatusServiceUnavailable, status)
}

func TestSendOTPRouteIsRateLimited(t *testing.T) {
	app := setupApp(t, nil)

	for i := 0; i < 2; i++ {
		status, body := get(t, app, "/send-otp?number=94750000000")
		require.Equal(t, fiber.StatusInternalServerError, status)
		require.Contains(t, body, "WhatsApp bot is not connected!")
	}
	status, _ := get(t, app, "/send-otp?number=94750000000")
	require.Equal(t, fiber.StatusTooManyRequests, status)
}

func TestMetricsAndStatusPage(t *testing.T) {
	app := setupApp(t, nil)

	status, body := get(t, app, "/metrics")
	require.Equal(t, fiber.StatusOK, status)
	require.Contains(t, body, "otpmd_session_open")

	status, body = get(t, app, "/")
	require.Equal(t, fiber.StatusOK, status)
	require.True(t, strings.Contains(body, `new EventSource("/events")`))

	status, _ = get(t, app, "/qr.png")
	require.Equal(t, fiber.StatusNotFound, status)
}
