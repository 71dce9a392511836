package websocket

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocol reports a frame sequence that violates RFC 6455.
	ErrProtocol = errors.New("websocket: protocol error")
	// ErrMessageTooBig reports a frame or message above the size limit.
	ErrMessageTooBig = errors.New("websocket: message too big")
	// ErrInvalidPayload reports a text message that is not valid UTF-8.
	ErrInvalidPayload = errors.New("websocket: invalid payload data")
	// ErrBadHandshake reports an upgrade request that cannot be accepted.
	ErrBadHandshake = errors.New("websocket: bad handshake")
	// ErrClosed is returned by Send methods once the close frame was sent.
	ErrClosed = errors.New("websocket: connection closed")
)

// Close status codes (RFC 6455 section 7.4.1).
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	CloseProtocolError   = 1002
	CloseUnsupportedData = 1003
	CloseNoStatus        = 1005
	CloseAbnormal        = 1006
	CloseInvalidPayload  = 1007
	ClosePolicyViolation = 1008
	CloseMessageTooBig   = 1009
	CloseMandatoryExt    = 1010
	CloseInternalError   = 1011
)

// CloseError describes how a connection was closed.
type CloseError struct {
	Code   int
	Reason string
	// Err is the local error that caused the close, nil when the peer
	// closed.
	Err error
}

func (e *CloseError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("websocket: close %d: %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("websocket: close %d", e.Code)
}

func (e *CloseError) Unwrap() error {
	return e.Err
}

// validCloseCode reports whether code may appear in a close frame.
func validCloseCode(code int) bool {
	switch {
	case code >= 1000 && code <= 1003:
		return true
	case code >= 1007 && code <= 1011:
		return true
	case code >= 3000 && code <= 4999:
		return true
	}
	return false
}

// closeCodeFor maps a read failure to the status sent to the peer.
func closeCodeFor(err error) int {
	switch {
	case errors.Is(err, ErrMessageTooBig):
		return CloseMessageTooBig
	case errors.Is(err, ErrInvalidPayload):
		return CloseInvalidPayload
	case errors.Is(err, ErrProtocol):
		return CloseProtocolError
	default:
		return CloseGoingAway
	}
}
