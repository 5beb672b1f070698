package gateway

import (
	"errors"
	"net/http"
)

// Kind classifies gateway failures for the HTTP boundary.
type Kind int

const (
	// KindInvalidInput means a required field was missing.
	KindInvalidInput Kind = iota + 1
	// KindClientUnavailable means no authenticated messaging session exists.
	KindClientUnavailable
	// KindDeliveryFailed means the messaging client failed to send.
	KindDeliveryFailed
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindClientUnavailable:
		return "client_unavailable"
	case KindDeliveryFailed:
		return "delivery_failed"
	default:
		return "unknown"
	}
}

// Error is a classified gateway failure. Msg is user facing; Err, when set,
// is the underlying cause reported as details.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode maps the kind to an HTTP status.
func (e *Error) StatusCode() int {
	if e.Kind == KindInvalidInput {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

var (
	errNumberRequired  = &Error{Kind: KindInvalidInput, Msg: "Phone number is required!"}
	errOTPRequired     = &Error{Kind: KindInvalidInput, Msg: "OTP is required!"}
	errMessageRequired = &Error{Kind: KindInvalidInput, Msg: "Message text is required!"}
	errNotConnected    = &Error{Kind: KindClientUnavailable, Msg: "WhatsApp bot is not connected!"}
)

func deliveryFailed(msg string, err error) *Error {
	return &Error{Kind: KindDeliveryFailed, Msg: msg, Err: err}
}

// IsKind reports whether err is a gateway Error of kind k.
func IsKind(err error, k Kind) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == k
}
