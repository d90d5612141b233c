package registry

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Errors returned by Conn.Send. Both mean the same thing to a sender:
// this connection cannot take the event right now and should be treated
// as offline. The history re-fetch is the catch-up path, not a retry here.
var (
	ErrConnClosed   = errors.New("connection is closed")
	ErrSlowConsumer = errors.New("connection send buffer is full")
)

// DefaultSendBuffer is the outbound queue depth per connection.
const DefaultSendBuffer = 256

// Conn is one live connection, tied to exactly one identity for its
// lifetime. It owns its outbound channel: the dispatcher and the presence
// publisher write to it, the transport's write loop drains it, and closing
// it is how the server cancels delivery on disconnect.
type Conn struct {
	id       string
	identity string

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

// NewConn creates a connection handle for the given identity.
func NewConn(identity string, buffer int) *Conn {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Conn{
		id:       uuid.NewString(),
		identity: identity,
		send:     make(chan []byte, buffer),
	}
}

// ID returns the unique identifier of this connection.
func (c *Conn) ID() string { return c.id }

// Identity returns the identity this connection belongs to.
func (c *Conn) Identity() string { return c.identity }

// Send queues a payload without blocking. A full buffer means the peer is
// lagging or gone; the caller decides whether that evicts the connection.
func (c *Conn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Outbound is the channel the transport's write loop drains. It is closed
// exactly once, by Close.
func (c *Conn) Outbound() <-chan []byte { return c.send }

// Close closes the outbound channel. Safe to call more than once.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
