package s7

import "time"

// Endpoint identifies the PLC to connect to. Immutable after construction.
type Endpoint struct {
	Address string // host or host:port, port defaults to 102
	Rack    int
	Slot    int
}

// RegisterAddress locates a value inside the PLC's memory:
// byte range [Offset, Offset+Length) within data block Block.
type RegisterAddress struct {
	Block  int
	Offset int
	Length int
}

// Reading is one decoded value with its capture timestamp.
type Reading struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// ConnectionState is the client's session state.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}
