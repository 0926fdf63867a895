// Package tcp provides the TCP stream socket primitive.
package tcp

import (
	"fmt"
	"net"
	"time"

	"github.com/streamforge/physport/port/common"
	"github.com/streamforge/physport/port/socket"
	"github.com/streamforge/physport/port/socket/base"
)

// serverConnector implements the IServerConnector interface for TCP sockets
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "tcp"
}

func (c *serverConnector) Listen(endpoint string, _ common.PortConfig) (net.Listener, error) {
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create TCP socket: %v", err)
	}

	return listener, nil
}

// Upgrade applies performance optimizations to an accepted TCP connection
// using configuration values from TCPConf and SocketConf
func (c *serverConnector) Upgrade(conn net.Conn, conf common.PortConfig) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil // Not a TCP connection, nothing to upgrade
	}

	// Disable Nagle's algorithm (TCPNoDelay) if configured
	if err := tcpConn.SetNoDelay(conf.TCP.TCPNoDelay); err != nil {
		return err
	}

	// Set socket write buffer size if configured
	if conf.Socket.SendBufferSize > 0 {
		if err := tcpConn.SetWriteBuffer(conf.Socket.SendBufferSize); err != nil {
			return err
		}
	}

	// Set socket read buffer size if configured
	if conf.Socket.RecvBufferSize > 0 {
		if err := tcpConn.SetReadBuffer(conf.Socket.RecvBufferSize); err != nil {
			return err
		}
	}

	// Enable TCP keep-alive if configured
	if conf.TCP.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}

		keepAlivePeriod := time.Duration(conf.TCP.TCPKeepAliveSec) * time.Second
		if err := tcpConn.SetKeepAlivePeriod(keepAlivePeriod); err != nil {
			return err
		}
	}

	// Set TCP linger option if configured
	if conf.TCP.TCPLingerSec >= 0 {
		if err := tcpConn.SetLinger(conf.TCP.TCPLingerSec); err != nil {
			return err
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Server Socket Factory Method
// --------------------------------------------------------------------------

// NewServerSocket creates a new TCP server socket
func NewServerSocket() socket.IServerSocket {
	return base.NewServerSocket(&serverConnector{})
}
