package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/otpmd/otpmd/internal/gateway"
)

// RegisterGatewayRoutes mounts the OTP, messaging and pairing endpoints.
func RegisterGatewayRoutes(app *fiber.App, h *gateway.Handler, sendOTPLimit fiber.Handler) {
	app.Get("/send-otp", sendOTPLimit, h.SendOTP)
	app.Get("/verify-otp", h.VerifyOTP)
	app.Get("/send-message", h.SendMessage)
	app.Get("/events", h.Events)
	app.Get("/qr.png", h.QR)
}
