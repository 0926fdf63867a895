// Package srt provides the SRT stream socket primitive on top of
// github.com/datarhei/gosrt. The SRT handshake and retransmission logic live
// entirely in the library; a connection is only surfaced once it is fully
// established, so the port sees the same contract as for TCP.
package srt

import (
	"fmt"
	"net"

	gosrt "github.com/datarhei/gosrt"
	"github.com/streamforge/physport/port/common"
	"github.com/streamforge/physport/port/socket"
	"github.com/streamforge/physport/port/socket/base"
)

// serverConnector implements the IServerConnector interface for SRT sockets
type serverConnector struct{}

// listenerAdapter exposes a gosrt.Listener through the net.Listener interface
// so the base server socket can drive it like any other stream listener.
// Every connection request is accepted; stream-id based authorization is up
// to the observers.
type listenerAdapter struct {
	ln gosrt.Listener
}

func (l *listenerAdapter) Accept() (net.Conn, error) {
	for {
		conn, mode, err := l.ln.Accept(func(req gosrt.ConnRequest) gosrt.ConnType {
			return gosrt.PUBLISH
		})
		if err != nil {
			return nil, err
		}

		if mode == gosrt.REJECT || conn == nil {
			continue
		}

		return conn, nil
	}
}

func (l *listenerAdapter) Close() error {
	l.ln.Close()
	return nil
}

func (l *listenerAdapter) Addr() net.Addr {
	return l.ln.Addr()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "srt"
}

func (c *serverConnector) Listen(endpoint string, conf common.PortConfig) (net.Listener, error) {
	config := gosrt.DefaultConfig()
	if conf.Socket.RecvBufferSize > 0 {
		config.ReceiverBufferSize = uint32(conf.Socket.RecvBufferSize)
	}
	if conf.Socket.SendBufferSize > 0 {
		config.SendBufferSize = uint32(conf.Socket.SendBufferSize)
	}

	ln, err := gosrt.Listen("srt", endpoint, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create SRT socket: %v", err)
	}

	return &listenerAdapter{ln: ln}, nil
}

// Upgrade is a no-op for SRT, buffer sizing is part of the listen config
func (c *serverConnector) Upgrade(_ net.Conn, _ common.PortConfig) error {
	return nil
}

// --------------------------------------------------------------------------
// Server Socket Factory Method
// --------------------------------------------------------------------------

// NewServerSocket creates a new SRT server socket
func NewServerSocket() socket.IServerSocket {
	return base.NewServerSocket(&serverConnector{})
}
