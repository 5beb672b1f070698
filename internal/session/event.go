package session

import "time"

// State is the connection state reported by the messaging client.
type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
)

// Disconnect status codes carried by closed updates. Only StatusLoggedOut is terminal.
const (
	StatusLoggedOut          = 401
	StatusForbidden          = 403
	StatusClientOutdated     = 405
	StatusConnectionLost     = 408
	StatusConnectionClosed   = 428
	StatusConnectionReplaced = 440
	StatusBadSession         = 500
)

// Disconnect describes why a connection closed.
type Disconnect struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error,omitempty"`
}

// LoggedOut reports whether the session was revoked and must be paired again.
func (d Disconnect) LoggedOut() bool {
	return d.StatusCode == StatusLoggedOut
}

// Update is a raw connection-lifecycle notification.
type Update struct {
	Connection     State       `json:"connection,omitempty"`
	QR             string      `json:"qr,omitempty"`
	LastDisconnect *Disconnect `json:"lastDisconnect,omitempty"`
	Date           time.Time   `json:"date"`
}

// Event is emitted by the session to its subscribers.
type Event interface {
	sessionEvent()
}

// ConnectionEvent carries a connection-lifecycle update.
type ConnectionEvent struct {
	Update Update
}

// CredentialsEvent carries an opaque credential snapshot to persist.
type CredentialsEvent struct {
	Snapshot []byte
}

// DialFailedEvent is emitted when a (re)connection attempt could not start.
type DialFailedEvent struct {
	Err error
}

func (ConnectionEvent) sessionEvent()  {}
func (CredentialsEvent) sessionEvent() {}
func (DialFailedEvent) sessionEvent()  {}
