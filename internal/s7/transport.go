package s7

import (
	"time"

	"github.com/robinson/gos7"
)

// Transport is the wire-level session to the PLC. Implementations own the
// S7 handshake and PDU framing; the client above only sees block reads.
type Transport interface {
	Connect() error
	ReadBytes(block, offset, length int) ([]byte, error)
	Close() error
}

// TCPTransport speaks S7comm over ISO-on-TCP via gos7.
type TCPTransport struct {
	handler *gos7.TCPClientHandler
	client  gos7.Client
}

// NewTCPTransport builds a transport for the given endpoint. No network
// activity happens until Connect.
func NewTCPTransport(ep Endpoint, timeout time.Duration) *TCPTransport {
	handler := gos7.NewTCPClientHandler(ep.Address, ep.Rack, ep.Slot)
	handler.Timeout = timeout
	handler.IdleTimeout = 0 // sessions are closed explicitly

	return &TCPTransport{
		handler: handler,
		client:  gos7.NewClient(handler),
	}
}

func (t *TCPTransport) Connect() error {
	return t.handler.Connect()
}

func (t *TCPTransport) ReadBytes(block, offset, length int) ([]byte, error) {
	buf := make([]byte, length)
	if err := t.client.AGReadDB(block, offset, length, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (t *TCPTransport) Close() error {
	return t.handler.Close()
}
