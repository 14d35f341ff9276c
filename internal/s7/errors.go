package s7

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when a read is attempted without a session.
// No network I/O is performed in that case.
var ErrNotConnected = errors.New("s7: not connected")

// ConnectionError reports a failed session handshake.
type ConnectionError struct {
	Endpoint Endpoint
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("s7: connect to %s (rack %d, slot %d) failed: %v",
		e.Endpoint.Address, e.Endpoint.Rack, e.Endpoint.Slot, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransportError reports an I/O failure during a read on an established
// session. The session is torn down when it occurs; a fresh handshake is
// required before the next read.
type TransportError struct {
	Address RegisterAddress
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("s7: read DB%d.DBB%d len=%d failed: %v",
		e.Address.Block, e.Address.Offset, e.Address.Length, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ShortReadError reports that the transport returned fewer bytes than
// requested. The session stays up; a short read is retryable in place.
type ShortReadError struct {
	Address RegisterAddress
	Got     int
}

func (e *ShortReadError) Error() string {
	return fmt.Sprintf("s7: short read DB%d.DBB%d: expected %d bytes, got %d",
		e.Address.Block, e.Address.Offset, e.Address.Length, e.Got)
}

// DecodeError reports a byte count that cannot represent the target
// numeric type.
type DecodeError struct {
	Length int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("s7: cannot decode REAL from %d bytes, need %d", e.Length, RealSize)
}
