package whatsapp

import (
	"encoding/json"
	"time"

	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/otpmd/otpmd/internal/session"
)

// Snapshot is the credential summary mirrored to disk after pairing and on
// every successful connection.
type Snapshot struct {
	ID           string    `json:"id"`
	PushName     string    `json:"pushName,omitempty"`
	Platform     string    `json:"platform,omitempty"`
	BusinessName string    `json:"businessName,omitempty"`
	SavedAt      time.Time `json:"savedAt"`
}

func deviceSnapshot(device *store.Device, id types.JID, now time.Time) ([]byte, bool) {
	if id.IsEmpty() && device.ID != nil {
		id = *device.ID
	}
	if id.IsEmpty() {
		return nil, false
	}
	blob, err := json.Marshal(Snapshot{
		ID:           id.String(),
		PushName:     device.PushName,
		Platform:     device.Platform,
		BusinessName: device.BusinessName,
		SavedAt:      now.UTC(),
	})
	if err != nil {
		return nil, false
	}
	return blob, true
}

func closed(code int, reason string) session.Event {
	return session.ConnectionEvent{Update: session.Update{
		Connection:     session.StateClosed,
		LastDisconnect: &session.Disconnect{StatusCode: code, Error: reason},
	}}
}

// translate maps a whatsmeow event to session events. Events with no
// lifecycle meaning map to nothing.
func translate(evt any, device *store.Device, now time.Time) []session.Event {
	switch e := evt.(type) {
	case *events.Connected:
		out := []session.Event{session.ConnectionEvent{Update: session.Update{Connection: session.StateOpen}}}
		if blob, ok := deviceSnapshot(device, types.EmptyJID, now); ok {
			out = append(out, session.CredentialsEvent{Snapshot: blob})
		}
		return out
	case *events.PairSuccess:
		if blob, ok := deviceSnapshot(device, e.ID, now); ok {
			return []session.Event{session.CredentialsEvent{Snapshot: blob}}
		}
	case *events.LoggedOut:
		return []session.Event{closed(session.StatusLoggedOut, e.Reason.String())}
	case *events.ConnectFailure:
		if e.Reason.IsLoggedOut() {
			return []session.Event{closed(session.StatusLoggedOut, e.Reason.String())}
		}
		if e.Reason == events.ConnectFailureClientOutdated {
			return []session.Event{closed(session.StatusClientOutdated, e.Reason.String())}
		}
		return []session.Event{closed(session.StatusBadSession, e.Reason.String())}
	case *events.TemporaryBan:
		return []session.Event{closed(session.StatusForbidden, e.String())}
	case *events.ClientOutdated:
		return []session.Event{closed(session.StatusClientOutdated, "client outdated")}
	case *events.StreamReplaced:
		return []session.Event{closed(session.StatusConnectionReplaced, "connection replaced")}
	case *events.StreamError:
		return []session.Event{closed(session.StatusBadSession, "stream error "+e.Code)}
	case *events.Disconnected:
		return []session.Event{closed(session.StatusConnectionClosed, "connection closed")}
	}
	return nil
}
