package exchange

import "errors"

var (
	// ErrSessionClosed is returned when an operation hits a closed session.
	ErrSessionClosed = errors.New("exchange: session closed")

	// ErrNotConnected is returned when a write is attempted before connect.
	ErrNotConnected = errors.New("exchange: not connected")
)
