package s7

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Client manages one session to a PLC and performs discrete register
// reads. A Client is safe for concurrent use, but it is designed to be
// owned by a single polling goroutine at a time.
type Client struct {
	endpoint  Endpoint
	transport Transport
	mu        sync.Mutex
	state     ConnectionState
}

func NewClient(endpoint Endpoint, transport Transport) *Client {
	return &Client{
		endpoint:  endpoint,
		transport: transport,
		state:     StateDisconnected,
	}
}

// State returns the current session state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens a session to the PLC. It does not retry; retry policy
// lives in ReadWithRetry or the caller.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateConnected {
		return nil
	}

	if err := c.transport.Connect(); err != nil {
		return &ConnectionError{Endpoint: c.endpoint, Err: err}
	}

	c.state = StateConnected
	return nil
}

// Disconnect closes the session. Idempotent: calling it while already
// disconnected is a no-op.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDisconnected {
		return
	}

	_ = c.transport.Close()
	c.state = StateDisconnected
}

// ReadRegister performs exactly one read of addr and decodes the bytes as
// a big-endian IEEE-754 single. Requires an established session and a
// 4-byte register; neither violation touches the network. A transport
// failure tears the session down, so the next read needs a fresh Connect.
func (c *Client) ReadRegister(ctx context.Context, addr RegisterAddress) (Reading, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnected {
		return Reading{}, ErrNotConnected
	}
	if addr.Length != RealSize {
		return Reading{}, &DecodeError{Length: addr.Length}
	}
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}

	data, err := c.transport.ReadBytes(addr.Block, addr.Offset, addr.Length)
	if err != nil {
		// The session is assumed unrecoverable without a new handshake.
		_ = c.transport.Close()
		c.state = StateDisconnected
		return Reading{}, &TransportError{Address: addr, Err: err}
	}

	if len(data) < addr.Length {
		return Reading{}, &ShortReadError{Address: addr, Got: len(data)}
	}

	value, err := DecodeReal(data[:RealSize])
	if err != nil {
		return Reading{}, err
	}

	return Reading{Value: value, Timestamp: time.Now()}, nil
}

// ReadWithRetry calls ReadRegister up to maxRetries times with a fixed
// delay between attempts. After a transport or connect failure the
// session is re-established before the next attempt; short reads are
// retried on the existing session. Returns the first success, or the
// last error once the budget is exhausted.
func (c *Client) ReadWithRetry(ctx context.Context, addr RegisterAddress, maxRetries int, delay time.Duration) (Reading, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if delay > 0 {
				select {
				case <-ctx.Done():
					return Reading{}, ctx.Err()
				case <-time.After(delay):
				}
			}
			if needsReconnect(lastErr) {
				if err := c.Connect(); err != nil {
					lastErr = err
					continue
				}
			}
		}

		reading, err := c.ReadRegister(ctx, addr)
		if err == nil {
			return reading, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	return Reading{}, lastErr
}

// needsReconnect reports whether err invalidated the session. Short
// reads and decode failures leave the session usable.
func needsReconnect(err error) bool {
	var transportErr *TransportError
	var connectErr *ConnectionError
	return errors.As(err, &transportErr) ||
		errors.As(err, &connectErr) ||
		errors.Is(err, ErrNotConnected)
}
