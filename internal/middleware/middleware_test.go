package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/otpmd/otpmd/internal/logging"
)

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	var seen string
	app.Get("/", func(c *fiber.Ctx) error {
		seen = GetRequestID(c)
		return nil
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NotEmpty(t, seen)
	require.Equal(t, seen, resp.Header.Get(RequestIDHeader))

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "abc-123", seen)
	require.Equal(t, "abc-123", resp.Header.Get(RequestIDHeader))
}

func TestAuditLogsRequests(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, "info", "")

	app := fiber.New()
	app.Use(RequestID(), Audit(logger, "/metrics"))
	app.Get("/send-otp", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/fail", func(c *fiber.Ctx) error { return errors.New("boom") })
	app.Get("/metrics", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	_, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/send-otp?number=94750000000", nil))
	require.NoError(t, err)
	_, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/fail", nil))
	require.NoError(t, err)
	_, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var ok, failed map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ok))
	require.Equal(t, "INFO", ok["level"])
	require.Equal(t, "/send-otp", ok["path"])
	require.Equal(t, "94750000000", ok["number"])
	require.NotEmpty(t, ok["request_id"])

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &failed))
	require.Equal(t, "ERROR", failed["level"])
	require.Equal(t, "boom", failed["error"])
}
