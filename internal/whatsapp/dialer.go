// Package whatsapp connects sessions to the WhatsApp multi-device network.
package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"

	"github.com/otpmd/otpmd/internal/logging"
	"github.com/otpmd/otpmd/internal/session"
)

// Dialer creates whatsmeow clients for the first device in a store.
type Dialer struct {
	store  *DeviceStore
	logger *slog.Logger
	now    func() time.Time
}

// NewDialer builds a dialer. deviceName is shown in the linked devices list.
func NewDialer(ds *DeviceStore, deviceName string, logger *slog.Logger) *Dialer {
	if deviceName != "" {
		store.SetOSInfo(deviceName, [3]uint32{1, 0, 0})
	}
	return &Dialer{store: ds, logger: logger, now: time.Now}
}

// Dial connects a client. Unpaired devices report pairing codes as QR updates.
func (d *Dialer) Dial(ctx context.Context, emit session.Emitter) (session.Client, error) {
	device, err := d.store.Container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}

	wa := whatsmeow.NewClient(device, NewLogger(d.logger, "Client"))
	wa.EnableAutoReconnect = false
	client := &Client{wa: wa}

	wa.AddEventHandler(func(evt any) {
		for _, e := range translate(evt, device, d.now()) {
			emit(e)
		}
	})

	emit(session.ConnectionEvent{Update: session.Update{Connection: session.StateConnecting}})

	if wa.Store.ID == nil {
		qrCtx, cancel := context.WithCancel(context.Background())
		client.cancelQR = cancel
		qrs, err := wa.GetQRChannel(qrCtx)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("open pairing channel: %w", err)
		}
		go d.forwardQR(qrs, emit)
	}

	if err := wa.Connect(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect: %w", err)
	}
	return client, nil
}

func (d *Dialer) forwardQR(qrs <-chan whatsmeow.QRChannelItem, emit session.Emitter) {
	for item := range qrs {
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			emit(session.ConnectionEvent{Update: session.Update{QR: item.Code}})
		case whatsmeow.QRChannelSuccess.Event:
			d.logger.Info("device paired")
		case whatsmeow.QRChannelTimeout.Event:
			emit(closed(session.StatusConnectionLost, "pairing timed out"))
		case whatsmeow.QRChannelEventError:
			d.logger.Error("pairing failed", logging.Err(item.Error))
			emit(closed(session.StatusBadSession, "pairing failed"))
		}
	}
}
