package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/otpmd/otpmd/internal/logging"
	"github.com/otpmd/otpmd/internal/otp"
	"github.com/otpmd/otpmd/internal/qrcode"
)

const heartbeatInterval = 25 * time.Second

// Handler exposes gateway endpoints.
type Handler struct {
	gw        *Gateway
	logger    *slog.Logger
	heartbeat time.Duration
}

// NewHandler constructs a gateway HTTP handler.
func NewHandler(gw *Gateway, logger *slog.Logger) *Handler {
	return &Handler{gw: gw, logger: logger, heartbeat: heartbeatInterval}
}

type sendOTPResponse struct {
	Message string `json:"message"`
	Number  string `json:"number"`
	OTP     string `json:"otp"`
	Status  string `json:"status"`
}

type statusResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

type sendMessageResponse struct {
	Message string `json:"message"`
	Text    string `json:"text"`
}

// SendOTP issues a code and delivers it to ?number=.
func (h *Handler) SendOTP(c *fiber.Ctx) error {
	receipt, err := h.gw.RequestOTP(c.UserContext(), c.Query("number"))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(sendOTPResponse{
		Message: "OTP sent successfully",
		Number:  receipt.Recipient,
		OTP:     receipt.Code,
		Status:  "success",
	})
}

// VerifyOTP checks ?otp= against the live code for ?number=.
func (h *Handler) VerifyOTP(c *fiber.Ctx) error {
	res, err := h.gw.VerifyOTP(c.UserContext(), c.Query("number"), c.Query("otp"))
	if err != nil {
		return writeError(c, err)
	}
	switch res {
	case otp.ResultSuccess:
		return c.Status(http.StatusOK).JSON(statusResponse{Message: "OTP verified successfully!", Status: "success"})
	case otp.ResultMismatch:
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error":  "Invalid OTP or OTP expired. Please try again.",
			"status": "failure",
		})
	default:
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "OTP not found. Please request OTP first."})
	}
}

// SendMessage delivers ?message= to ?number= as plain text.
func (h *Handler) SendMessage(c *fiber.Ctx) error {
	number, text := strings.TrimSpace(c.Query("number")), c.Query("message")
	if err := h.gw.SendMessage(c.UserContext(), number, text); err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(sendMessageResponse{
		Message: fmt.Sprintf("Message sent to %s", number),
		Text:    text,
	})
}

// QR serves the current pairing code as a PNG image.
func (h *Handler) QR(c *fiber.Ctx) error {
	code, ok := h.gw.LatestQR()
	if !ok {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "No pairing code available"})
	}
	png, err := qrcode.PNG(code, c.QueryInt("size", 0))
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Type("png")
	return c.Send(png)
}

// Events streams observer notices as Server-Sent Events.
func (h *Handler) Events(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(context.Background())
	notices := h.gw.Observe(ctx)
	h.logger.Info("observer connected", slog.String("ip", c.IP()))

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer h.logger.Info("observer disconnected")

		if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}

		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
			case n, ok := <-notices:
				if !ok {
					return
				}
				payload, err := json.Marshal(n.Data)
				if err != nil {
					h.logger.Error("encode notice", logging.Err(err))
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Event, payload); err != nil {
					return
				}
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
	return nil
}

func writeError(c *fiber.Ctx, err error) error {
	var gerr *Error
	if errors.As(err, &gerr) {
		body := fiber.Map{"error": gerr.Msg}
		if gerr.Err != nil {
			body["details"] = gerr.Err.Error()
		}
		return c.Status(gerr.StatusCode()).JSON(body)
	}
	return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
		"error":   "Internal server error",
		"details": err.Error(),
	})
}
