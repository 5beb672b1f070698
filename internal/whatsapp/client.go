package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"github.com/otpmd/otpmd/internal/notification"
)

// ErrInvalidRecipient is returned for numbers that cannot form an account address.
var ErrInvalidRecipient = errors.New("invalid recipient")

// ParseRecipient turns a phone number or a full address into a JID.
// Spaces, dashes, parentheses and a leading plus are ignored.
func ParseRecipient(recipient string) (types.JID, error) {
	recipient = strings.TrimSpace(recipient)
	if strings.Contains(recipient, "@") {
		jid, err := types.ParseJID(recipient)
		if err != nil {
			return types.JID{}, fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
		}
		return jid, nil
	}

	var b strings.Builder
	for i, r := range recipient {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0, r == ' ', r == '-', r == '(', r == ')':
		default:
			return types.JID{}, fmt.Errorf("%w: %q", ErrInvalidRecipient, recipient)
		}
	}
	if b.Len() == 0 {
		return types.JID{}, fmt.Errorf("%w: %q", ErrInvalidRecipient, recipient)
	}
	return types.NewJID(b.String(), types.DefaultUserServer), nil
}

// Client is a session.Client backed by a whatsmeow connection.
type Client struct {
	wa *whatsmeow.Client

	once     sync.Once
	cancelQR func()
}

// User returns the paired account address once the connection is authenticated.
func (c *Client) User() (string, bool) {
	if !c.wa.IsLoggedIn() || c.wa.Store.ID == nil {
		return "", false
	}
	return c.wa.Store.ID.String(), true
}

// SendText sends a plain conversation message.
func (c *Client) SendText(ctx context.Context, recipient, text string) error {
	jid, err := ParseRecipient(recipient)
	if err != nil {
		return err
	}
	_, err = c.wa.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(text)})
	return err
}

// SendInteractive sends msg as a native-flow interactive message.
func (c *Client) SendInteractive(ctx context.Context, recipient string, msg notification.Interactive) error {
	jid, err := ParseRecipient(recipient)
	if err != nil {
		return err
	}
	_, err = c.wa.SendMessage(ctx, jid, interactiveMessage(msg))
	return err
}

// Close disconnects and stops event delivery.
func (c *Client) Close() {
	c.once.Do(func() {
		if c.cancelQR != nil {
			c.cancelQR()
		}
		c.wa.RemoveEventHandlers()
		c.wa.Disconnect()
	})
}

func interactiveMessage(msg notification.Interactive) *waE2E.Message {
	buttons := make([]*waE2E.InteractiveMessage_NativeFlowMessage_NativeFlowButton, 0, len(msg.Buttons))
	for _, b := range msg.Buttons {
		buttons = append(buttons, &waE2E.InteractiveMessage_NativeFlowMessage_NativeFlowButton{
			Name:             proto.String(b.Name),
			ButtonParamsJSON: proto.String(string(b.Params)),
		})
	}

	return &waE2E.Message{
		ViewOnceMessage: &waE2E.FutureProofMessage{
			Message: &waE2E.Message{
				MessageContextInfo: &waE2E.MessageContextInfo{
					DeviceListMetadata:        &waE2E.DeviceListMetadata{},
					DeviceListMetadataVersion: proto.Int32(2),
				},
				InteractiveMessage: &waE2E.InteractiveMessage{
					Header: &waE2E.InteractiveMessage_Header{
						Title:              proto.String(msg.Title),
						Subtitle:           proto.String(msg.Subtitle),
						HasMediaAttachment: proto.Bool(false),
					},
					Body:   &waE2E.InteractiveMessage_Body{Text: proto.String(msg.Body)},
					Footer: &waE2E.InteractiveMessage_Footer{Text: proto.String(msg.Footer)},
					InteractiveMessage: &waE2E.InteractiveMessage_NativeFlowMessage_{
						NativeFlowMessage: &waE2E.InteractiveMessage_NativeFlowMessage{
							Buttons:        buttons,
							MessageVersion: proto.Int32(1),
						},
					},
				},
			},
		},
	}
}
