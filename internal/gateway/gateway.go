// Package gateway turns HTTP requests into messages sent through the current
// messaging session and mirrors session lifecycle events to observers.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/otpmd/otpmd/internal/broadcast"
	"github.com/otpmd/otpmd/internal/clock"
	"github.com/otpmd/otpmd/internal/logging"
	"github.com/otpmd/otpmd/internal/metrics"
	"github.com/otpmd/otpmd/internal/notification"
	"github.com/otpmd/otpmd/internal/otp"
	"github.com/otpmd/otpmd/internal/qrcode"
	"github.com/otpmd/otpmd/internal/session"
)

// DefaultReconnectDelay is the wait before reconnecting after a transient disconnect.
const DefaultReconnectDelay = 5 * time.Second

// Observer notice names.
const (
	EventConnectionUpdate = "connection-update"
	EventStatus           = "status"
)

// Status strings pushed to observers.
const (
	StatusConnected     = "🌟 OTP-MD-CONNECTED 🌟"
	StatusReconnected   = "♻️ Connection reestablished."
	StatusLoggedOut     = "💔 Session logged out. Pair the device again."
	StatusReconnecting  = "💔 Connection closed. Reconnecting..."
	StatusStartFailed   = "❌ Failed to start WhatsApp bot."
	defaultAdminMessage = "🌟 OTP-MD Bot Connected Successfully! 🌟"
)

// Sessions gives access to the current messaging client.
type Sessions interface {
	Client() (session.Client, bool)
	Reconnect(ctx context.Context) error
}

// Notice is pushed to real-time observers.
type Notice struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Options configures a Gateway.
type Options struct {
	// AdminRecipient receives a one-off message on the first successful
	// connection. Empty disables it.
	AdminRecipient string
	AdminMessage   string
	ReconnectDelay time.Duration
	Template       notification.OTPTemplate
	// QRWriter, when set, receives pairing codes rendered as terminal QR codes.
	QRWriter io.Writer
}

// Receipt describes an issued and dispatched code.
type Receipt struct {
	Recipient string
	Code      string
}

// Gateway validates requests, issues codes and dispatches messages.
type Gateway struct {
	store     otp.Store
	sessions  Sessions
	observers *broadcast.Hub[Notice]
	clock     clock.Clock
	logger    *slog.Logger
	opts      Options

	opened atomic.Bool

	mu        sync.Mutex
	reconnect clock.Timer
	latestQR  string
}

// New builds a gateway.
func New(store otp.Store, sessions Sessions, observers *broadcast.Hub[Notice], clk clock.Clock, logger *slog.Logger, opts Options) *Gateway {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.AdminMessage == "" {
		opts.AdminMessage = defaultAdminMessage
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Gateway{
		store:     store,
		sessions:  sessions,
		observers: observers,
		clock:     clk,
		logger:    logger,
		opts:      opts,
	}
}

// RequestOTP issues a code for recipient and sends it as an interactive message.
// The code stays issued when delivery fails.
func (g *Gateway) RequestOTP(ctx context.Context, recipient string) (Receipt, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return Receipt{}, errNumberRequired
	}
	client, err := g.client()
	if err != nil {
		return Receipt{}, err
	}

	code, err := g.store.Issue(ctx, recipient)
	if err != nil {
		return Receipt{}, fmt.Errorf("issue otp: %w", err)
	}
	metrics.IncOTPIssued()

	msg, err := g.opts.Template.OTP(code)
	if err != nil {
		return Receipt{}, fmt.Errorf("render otp message: %w", err)
	}
	if err := client.SendInteractive(ctx, recipient, msg); err != nil {
		metrics.IncMessage("otp", "failure")
		g.logger.Error("send otp failed", slog.String("number", recipient), logging.Err(err))
		return Receipt{}, deliveryFailed("Failed to send OTP", err)
	}
	metrics.IncMessage("otp", "success")
	g.logger.Info("otp sent", slog.String("number", recipient))

	return Receipt{Recipient: recipient, Code: code}, nil
}

// VerifyOTP checks candidate against the live code for recipient.
func (g *Gateway) VerifyOTP(ctx context.Context, recipient, candidate string) (otp.Result, error) {
	recipient = strings.TrimSpace(recipient)
	candidate = strings.TrimSpace(candidate)
	if recipient == "" {
		return otp.ResultNotFound, errNumberRequired
	}
	if candidate == "" {
		return otp.ResultNotFound, errOTPRequired
	}

	res, err := g.store.Verify(ctx, recipient, candidate)
	if err != nil {
		return otp.ResultNotFound, err
	}
	metrics.IncVerification(res.String())
	g.logger.Info("otp verification", slog.String("number", recipient), slog.String("result", res.String()))
	return res, nil
}

// SendMessage sends a plain text message to recipient.
func (g *Gateway) SendMessage(ctx context.Context, recipient, text string) error {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return errNumberRequired
	}
	if text == "" {
		return errMessageRequired
	}
	client, err := g.client()
	if err != nil {
		return err
	}

	if err := client.SendText(ctx, recipient, text); err != nil {
		metrics.IncMessage("text", "failure")
		g.logger.Error("send message failed", slog.String("number", recipient), logging.Err(err))
		return deliveryFailed("Failed to send message", err)
	}
	metrics.IncMessage("text", "success")
	g.logger.Info("message sent", slog.String("number", recipient))
	return nil
}

// Observe subscribes to observer notices until ctx ends.
func (g *Gateway) Observe(ctx context.Context) <-chan Notice {
	return g.observers.Subscribe(ctx)
}

// LatestQR returns the most recent pairing code while the session is unpaired.
func (g *Gateway) LatestQR() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.latestQR, g.latestQR != ""
}

// Run handles session events in arrival order until ctx ends or events closes.
func (g *Gateway) Run(ctx context.Context, events <-chan session.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			switch e := evt.(type) {
			case session.ConnectionEvent:
				g.OnConnectionUpdate(ctx, e.Update)
			case session.DialFailedEvent:
				g.OnDialFailed(ctx, e.Err)
			}
		}
	}
}

// OnConnectionUpdate reacts to a lifecycle update: it mirrors the raw update,
// schedules a reconnect after transient disconnects, and announces opens.
func (g *Gateway) OnConnectionUpdate(ctx context.Context, u session.Update) {
	g.observers.Publish(Notice{Event: EventConnectionUpdate, Data: u})

	if u.QR != "" {
		g.showQR(u.QR)
	}

	switch u.Connection {
	case session.StateClosed:
		metrics.SetSessionOpen(false)
		reason := session.Disconnect{StatusCode: session.StatusConnectionClosed}
		if u.LastDisconnect != nil {
			reason = *u.LastDisconnect
		}
		if reason.LoggedOut() {
			g.logger.Warn("connection closed: logged out, not reconnecting", slog.Int("status_code", reason.StatusCode))
			g.status(StatusLoggedOut)
			return
		}
		g.logger.Warn("connection closed, reconnecting",
			slog.Int("status_code", reason.StatusCode),
			slog.String("reason", reason.Error),
			slog.Duration("delay", g.opts.ReconnectDelay),
		)
		g.scheduleReconnect(ctx)
		g.status(StatusReconnecting)
	case session.StateOpen:
		metrics.SetSessionOpen(true)
		g.mu.Lock()
		g.latestQR = ""
		g.mu.Unlock()
		if g.opened.CompareAndSwap(false, true) {
			g.logger.Info("messaging session connected")
			g.status(StatusConnected)
			g.notifyAdmin(ctx)
			return
		}
		g.logger.Info("connection reestablished")
		g.status(StatusReconnected)
	}
}

// OnDialFailed treats a connection attempt that never got a socket like a
// transient close and retries after the reconnect delay.
func (g *Gateway) OnDialFailed(ctx context.Context, err error) {
	metrics.SetSessionOpen(false)
	g.status(StatusStartFailed)
	if ctx.Err() != nil || errors.Is(err, session.ErrClosed) {
		g.logger.Error("failed to start messaging session", logging.Err(err))
		return
	}
	g.logger.Error("failed to start messaging session, retrying",
		logging.Err(err),
		slog.Duration("delay", g.opts.ReconnectDelay),
	)
	g.scheduleReconnect(ctx)
}

// Stop cancels a pending reconnect.
func (g *Gateway) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reconnect != nil {
		g.reconnect.Stop()
		g.reconnect = nil
	}
}

func (g *Gateway) client() (session.Client, error) {
	c, ok := g.sessions.Client()
	if !ok {
		return nil, errNotConnected
	}
	if _, ok := c.User(); !ok {
		return nil, errNotConnected
	}
	return c, nil
}

func (g *Gateway) scheduleReconnect(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reconnect != nil {
		g.reconnect.Stop()
	}
	metrics.IncReconnect()
	g.reconnect = g.clock.AfterFunc(g.opts.ReconnectDelay, func() {
		if ctx.Err() != nil {
			return
		}
		if err := g.sessions.Reconnect(ctx); err != nil {
			g.logger.Error("reconnect failed", logging.Err(err))
		}
	})
}

func (g *Gateway) notifyAdmin(ctx context.Context) {
	if g.opts.AdminRecipient == "" {
		return
	}
	client, err := g.client()
	if err != nil {
		g.logger.Warn("skip connection notice", logging.Err(err))
		return
	}
	if err := client.SendText(ctx, g.opts.AdminRecipient, g.opts.AdminMessage); err != nil {
		metrics.IncMessage("admin", "failure")
		g.logger.Error("failed to send connection notice", slog.String("number", g.opts.AdminRecipient), logging.Err(err))
		return
	}
	metrics.IncMessage("admin", "success")
	g.logger.Info("connection notice sent", slog.String("number", g.opts.AdminRecipient))
}

func (g *Gateway) showQR(code string) {
	g.mu.Lock()
	g.latestQR = code
	g.mu.Unlock()

	if g.opts.QRWriter == nil {
		return
	}
	art, err := qrcode.Terminal(code)
	if err != nil {
		g.logger.Warn("render pairing code", logging.Err(err))
		return
	}
	fmt.Fprintf(g.opts.QRWriter, "Scan this code with the messaging app to pair:\n%s\n", art)
}

func (g *Gateway) status(msg string) {
	g.observers.Publish(Notice{Event: EventStatus, Data: msg})
}
