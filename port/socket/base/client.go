package base

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
)

// Client is the base implementation of socket.IClient. It wraps one accepted
// net.Conn and serializes writes so observers on different goroutines can
// respond concurrently.
type Client struct {
	id   uint64
	conn net.Conn

	writeMu sync.Mutex

	// forced is set when the close originates on our side (DisconnectClient
	// or Client.Close), so the read loop reports a plain disconnect instead
	// of an error
	forced atomic.Bool
}

func newClient(id uint64, conn net.Conn) *Client {
	return &Client{
		id:   id,
		conn: conn,
	}
}

// ID returns the monotonically assigned connection identifier
func (c *Client) ID() uint64 {
	return c.id
}

// RemoteAddr returns the peer address
func (c *Client) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// LocalAddr returns the local address of the connection
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Send writes data to the peer. Safe for concurrent use.
func (c *Client) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("failed to send %d bytes to %s: %v", len(data), c.RemoteAddr(), err)
	}
	return nil
}

// Close closes the connection from our side. The read loop observes the
// close and reports a regular disconnect.
func (c *Client) Close() error {
	c.forced.Store(true)
	return c.conn.Close()
}

// String returns a printable description for logging
func (c *Client) String() string {
	return fmt.Sprintf("#%d (%s)", c.id, c.RemoteAddr())
}
