package whatsapp

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/otpmd/otpmd/internal/notification"
	"github.com/otpmd/otpmd/internal/session"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestParseRecipient(t *testing.T) {
	cases := map[string]string{
		"94750000000":                "94750000000@s.whatsapp.net",
		"+94 75-000 0000":            "94750000000@s.whatsapp.net",
		"(94) 750000000":             "94750000000@s.whatsapp.net",
		"94750000000@s.whatsapp.net": "94750000000@s.whatsapp.net",
	}
	for in, want := range cases {
		jid, err := ParseRecipient(in)
		require.NoError(t, err, in)
		require.Equal(t, want, jid.String(), in)
	}

	for _, in := range []string{"", "+", "abc", "94+75"} {
		_, err := ParseRecipient(in)
		require.True(t, errors.Is(err, ErrInvalidRecipient), in)
	}
}

func pairedDevice() *store.Device {
	jid := types.NewJID("94700000000", types.DefaultUserServer)
	return &store.Device{ID: &jid, PushName: "OTP Bot", Platform: "android"}
}

func closedUpdate(t *testing.T, evts []session.Event) session.Update {
	t.Helper()
	require.Len(t, evts, 1)
	ce, ok := evts[0].(session.ConnectionEvent)
	require.True(t, ok)
	require.Equal(t, session.StateClosed, ce.Update.Connection)
	require.NotNil(t, ce.Update.LastDisconnect)
	return ce.Update
}

func TestTranslateConnectedEmitsOpenAndCredentials(t *testing.T) {
	evts := translate(&events.Connected{}, pairedDevice(), now)
	require.Len(t, evts, 2)

	ce := evts[0].(session.ConnectionEvent)
	require.Equal(t, session.StateOpen, ce.Update.Connection)

	creds := evts[1].(session.CredentialsEvent)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(creds.Snapshot, &snap))
	require.Equal(t, "94700000000@s.whatsapp.net", snap.ID)
	require.Equal(t, "OTP Bot", snap.PushName)
	require.Equal(t, now, snap.SavedAt)
}

func TestTranslateConnectedWithoutDevice(t *testing.T) {
	evts := translate(&events.Connected{}, &store.Device{}, now)
	require.Len(t, evts, 1)
}

func TestTranslatePairSuccessUsesEventID(t *testing.T) {
	jid := types.NewJID("94711111111", types.DefaultUserServer)
	evts := translate(&events.PairSuccess{ID: jid}, &store.Device{}, now)
	require.Len(t, evts, 1)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(evts[0].(session.CredentialsEvent).Snapshot, &snap))
	require.Equal(t, jid.String(), snap.ID)
}

func TestTranslateDisconnectReasons(t *testing.T) {
	device := pairedDevice()
	cases := []struct {
		name string
		evt  any
		code int
	}{
		{"logged out", &events.LoggedOut{Reason: events.ConnectFailureLoggedOut}, session.StatusLoggedOut},
		{"connect failure logout", &events.ConnectFailure{Reason: events.ConnectFailureMainDeviceGone}, session.StatusLoggedOut},
		{"connect failure outdated", &events.ConnectFailure{Reason: events.ConnectFailureClientOutdated}, session.StatusClientOutdated},
		{"connect failure other", &events.ConnectFailure{Reason: events.ConnectFailureServiceUnavailable}, session.StatusBadSession},
		{"temporary ban", &events.TemporaryBan{Expire: time.Hour}, session.StatusForbidden},
		{"client outdated", &events.ClientOutdated{}, session.StatusClientOutdated},
		{"replaced", &events.StreamReplaced{}, session.StatusConnectionReplaced},
		{"stream error", &events.StreamError{Code: "503"}, session.StatusBadSession},
		{"disconnected", &events.Disconnected{}, session.StatusConnectionClosed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := closedUpdate(t, translate(tc.evt, device, now))
			require.Equal(t, tc.code, u.LastDisconnect.StatusCode)
			require.Equal(t, tc.code == session.StatusLoggedOut, u.LastDisconnect.LoggedOut())
		})
	}
}

func TestTranslateIgnoresOtherEvents(t *testing.T) {
	require.Empty(t, translate(&events.Receipt{}, pairedDevice(), now))
	require.Empty(t, translate("not an event", pairedDevice(), now))
}

func TestInteractiveMessageLayout(t *testing.T) {
	msg, err := notification.DefaultOTPTemplate("https://otp.example.com/").OTP("123456")
	require.NoError(t, err)

	wm := interactiveMessage(msg)
	inner := wm.GetViewOnceMessage().GetMessage()
	require.EqualValues(t, 2, inner.GetMessageContextInfo().GetDeviceListMetadataVersion())

	im := inner.GetInteractiveMessage()
	require.Equal(t, "OTP Verification", im.GetHeader().GetTitle())
	require.Equal(t, "> OTP-MD", im.GetHeader().GetSubtitle())
	require.Contains(t, im.GetBody().GetText(), "*123456*")
	require.Equal(t, "OTP-MD Gateway", im.GetFooter().GetText())

	buttons := im.GetNativeFlowMessage().GetButtons()
	require.Len(t, buttons, 2)
	require.Equal(t, notification.ButtonCopy, buttons[0].GetName())
	require.JSONEq(t, string(msg.Buttons[0].Params), buttons[0].GetButtonParamsJSON())
	require.Equal(t, notification.ButtonURL, buttons[1].GetName())
}

func TestLoggerBridge(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	log := NewLogger(base, "Client").Sub("Socket")
	log.Warnf("frame %d dropped", 7)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "WARN", rec["level"])
	require.Equal(t, "frame 7 dropped", rec["msg"])
	require.Equal(t, "Client/Socket", rec["module"])
}
