package session

import "fmt"

// ErrorCode enumerates the ways a session-level operation can fail, modeled
// on the tunnel protocol's ProtocolError{Code,Msg} pairing rather than a
// grab bag of sentinel errors.
type ErrorCode int

const (
	ErrCodeNotRegistered ErrorCode = iota + 1
	ErrCodeSessionClosed
	ErrCodeTransportLost
	ErrCodeTimeout
	ErrCodeWrongState
	ErrCodeStalledConnection
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeNotRegistered:
		return "NOT_REGISTERED"
	case ErrCodeSessionClosed:
		return "SESSION_CLOSED"
	case ErrCodeTransportLost:
		return "TRANSPORT_LOST"
	case ErrCodeTimeout:
		return "TIMEOUT"
	case ErrCodeWrongState:
		return "WRONG_STATE"
	case ErrCodeStalledConnection:
		return "STALLED_CONNECTION"
	default:
		return "UNKNOWN"
	}
}

// Error is the typed error surfaced by Session operations.
type Error struct {
	Code ErrorCode
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func newError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}
