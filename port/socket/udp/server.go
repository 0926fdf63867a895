// Package udp provides the datagram socket primitive. Datagram endpoints
// have no persistent connection object, every packet is surfaced together
// with its remote address.
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/streamforge/physport/port/common"
	"github.com/streamforge/physport/port/socket"
)

var Logger = logger.GetLogger("socket")

const (
	// defaultReadBufferSize is used when no receive buffer hint is configured
	defaultReadBufferSize = 65536

	// maxBatch bounds how many packets one DispatchEvent call drains
	maxBatch = 64
)

// datagramSocket implements socket.IDatagramSocket on top of a UDP socket.
// Unlike the stream sockets there are no internal goroutines: DispatchEvent
// reads directly with a deadline, so all packets are delivered on the
// dispatching goroutine.
type datagramSocket struct {
	conn  *net.UDPConn
	buf   []byte
	state atomic.Int32

	closeOnce sync.Once
}

// NewDatagramSocket creates a new UDP datagram socket
func NewDatagramSocket() socket.IDatagramSocket {
	s := &datagramSocket{}
	s.state.Store(int32(socket.StateCreated))
	return s
}

// --------------------------------------------------------------------------
// Interface Methods (docu see socket.IDatagramSocket)
// --------------------------------------------------------------------------

func (s *datagramSocket) Prepare(endpoint string, conf common.PortConfig) error {
	addr, err := net.ResolveUDPAddr("udp", endpoint)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address %s: %v", endpoint, err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to create UDP socket: %v", err)
	}
	s.conn = conn

	if conf.Socket.RecvBufferSize > 0 {
		if err := conn.SetReadBuffer(conf.Socket.RecvBufferSize); err != nil {
			Logger.Warningf("failed to set UDP read buffer to %d: %v", conf.Socket.RecvBufferSize, err)
		}
	}
	if conf.Socket.SendBufferSize > 0 {
		if err := conn.SetWriteBuffer(conf.Socket.SendBufferSize); err != nil {
			Logger.Warningf("failed to set UDP write buffer to %d: %v", conf.Socket.SendBufferSize, err)
		}
	}

	// the configured size is a kernel buffer hint, not a datagram size
	// limit - the read buffer must always hold a full datagram
	size := conf.Socket.RecvBufferSize
	if size < defaultReadBufferSize {
		size = defaultReadBufferSize
	}
	s.buf = make([]byte, size)

	s.state.Store(int32(socket.StateListening))

	Logger.Infof("udp socket is listening on %s", conn.LocalAddr())

	return nil
}

func (s *datagramSocket) DispatchEvent(dataCb socket.DatagramCallback, timeout time.Duration) bool {
	if s.GetState() != socket.StateListening {
		return false
	}

	deadline := time.Now().Add(timeout)

	for i := 0; i < maxBatch; i++ {
		if err := s.conn.SetReadDeadline(deadline); err != nil {
			return s.GetState() == socket.StateListening
		}

		n, remote, err := s.conn.ReadFromUDP(s.buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				// quiet interval, give the loop a chance to check its stop flag
				return s.GetState() == socket.StateListening
			}
			if errors.Is(err, net.ErrClosed) {
				return false
			}

			// per-packet errors never stop the socket
			Logger.Errorf("failed to read UDP packet: %v", err)
			return s.GetState() == socket.StateListening
		}

		// immutable snapshot, the read buffer is reused
		data := make([]byte, n)
		copy(data, s.buf[:n])

		dataCb(remote, data)

		// after the first packet only drain what is already pending
		deadline = time.Now()
	}

	return s.GetState() == socket.StateListening
}

func (s *datagramSocket) LocalAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

func (s *datagramSocket) Close() bool {
	s.closeOnce.Do(func() {
		if s.conn != nil {
			_ = s.conn.Close()
		}
		s.state.Store(int32(socket.StateClosed))

		Logger.Infof("udp socket is closed")
	})

	return s.GetState() == socket.StateClosed
}

func (s *datagramSocket) GetState() socket.State {
	return socket.State(s.state.Load())
}
