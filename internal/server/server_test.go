package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/otpmd/otpmd/internal/broadcast"
	"github.com/otpmd/otpmd/internal/clock"
	"github.com/otpmd/otpmd/internal/config"
	"github.com/otpmd/otpmd/internal/gateway"
	"github.com/otpmd/otpmd/internal/logging"
	"github.com/otpmd/otpmd/internal/otp"
	"github.com/otpmd/otpmd/internal/routes"
	"github.com/otpmd/otpmd/internal/session"
)

type noSession struct{}

func (noSession) Client() (session.Client, bool)  { return nil, false }
func (noSession) Reconnect(context.Context) error { return nil }
func (noSession) State() session.State            { return session.StateClosed }

func TestUnknownRouteReturnsJSON(t *testing.T) {
	hub := broadcast.NewHub[gateway.Notice](1)
	defer hub.Close()
	gw := gateway.New(otp.NewMemoryStore(otp.DefaultTTL, clock.New()), noSession{}, hub, clock.New(), logging.Discard(), gateway.Options{})

	srv, err := New(routes.Deps{
		Cfg:     config.Config{AppName: "test", Port: "0"},
		Logger:  logging.Discard(),
		Gateway: gateway.NewHandler(gw, logging.Discard()),
		Session: noSession{},
	})
	require.NoError(t, err)

	resp, err := srv.App().Test(httptest.NewRequest(fiber.MethodGet, "/missing", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "Cannot GET /missing", body["error"])
}
