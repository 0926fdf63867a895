package base

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/streamforge/physport/port/common"
	"github.com/streamforge/physport/port/socket"
)

var Logger = logger.GetLogger("socket")

const (
	// defaultReadBufferSize is used when no receive buffer hint is configured
	defaultReadBufferSize = 4096

	// eventQueueSize bounds how many undispatched events the socket holds.
	// When full, the accept and read goroutines block until the dispatcher
	// catches up.
	eventQueueSize = 1024
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener bound to the endpoint and returns it
	Listen(endpoint string, conf common.PortConfig) (net.Listener, error)

	// Upgrade applies transport-specific options to an accepted connection
	Upgrade(conn net.Conn, conf common.PortConfig) error

	// GetName returns the name of the transport type (e.g., "tcp", "srt")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

type eventKind int

const (
	evConnected eventKind = iota
	evDisconnected
	evError
	evData
)

// event is one unit of ready I/O, produced by the accept and read goroutines
// and consumed by DispatchEvent on the port's event loop goroutine
type event struct {
	kind   eventKind
	client *Client
	data   []byte
	err    error
}

// ServerSocket implements socket.IServerSocket on top of a pluggable
// connector. The accept loop and one read goroutine per connection feed an
// internal event queue; DispatchEvent drains it on the caller's goroutine.
type ServerSocket struct {
	connector IServerConnector
	conf      common.PortConfig

	listener net.Listener
	clients  *xsync.MapOf[uint64, *Client]
	events   chan event
	nextID   atomic.Uint64
	state    atomic.Int32

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// -----------------------------------------------------------
// Server Socket Factory Method (used for tcp, srt, etc.)
// -----------------------------------------------------------

// NewServerSocket creates a new stream server socket on top of the given connector
func NewServerSocket(connector IServerConnector) socket.IServerSocket {
	s := &ServerSocket{
		connector: connector,
		clients:   xsync.NewMapOf[uint64, *Client](),
		events:    make(chan event, eventQueueSize),
		done:      make(chan struct{}),
	}
	s.state.Store(int32(socket.StateCreated))
	return s
}

// --------------------------------------------------------------------------
// Interface Methods (docu see socket.IServerSocket)
// --------------------------------------------------------------------------

func (s *ServerSocket) Prepare(endpoint string, conf common.PortConfig) error {
	s.conf = conf

	listener, err := s.connector.Listen(endpoint, conf)
	if err != nil {
		return fmt.Errorf("failed to create %s listener: %v", s.connector.GetName(), err)
	}
	s.listener = listener
	s.state.Store(int32(socket.StateListening))

	Logger.Infof("%s socket is listening on %s", s.connector.GetName(), listener.Addr())

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

func (s *ServerSocket) DispatchEvent(connCb socket.ConnectionCallback, dataCb socket.DataCallback, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-s.events:
		s.handleEvent(ev, connCb, dataCb)

		// drain everything that is already ready before returning to the loop
		for {
			select {
			case ev := <-s.events:
				s.handleEvent(ev, connCb, dataCb)
			default:
				return s.GetState() == socket.StateListening
			}
		}

	case <-s.done:
		return false

	case <-timer.C:
		return s.GetState() == socket.StateListening
	}
}

func (s *ServerSocket) DisconnectClient(client socket.IClient) bool {
	if client == nil {
		return false
	}

	c, ok := s.clients.Load(client.ID())
	if !ok {
		return false
	}

	// the read loop observes the close and emits the disconnect event
	_ = c.Close()
	return true
}

func (s *ServerSocket) LocalAddr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *ServerSocket) Close() bool {
	s.closeOnce.Do(func() {
		close(s.done)

		if s.listener != nil {
			_ = s.listener.Close()
		}

		// close every live connection so the read goroutines exit
		s.clients.Range(func(_ uint64, c *Client) bool {
			_ = c.Close()
			return true
		})

		s.wg.Wait()
		s.state.Store(int32(socket.StateClosed))

		Logger.Infof("%s socket is closed", s.connector.GetName())
	})

	return s.GetState() == socket.StateClosed
}

func (s *ServerSocket) GetState() socket.State {
	return socket.State(s.state.Load())
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleEvent translates one internal event into the dispatch callbacks
func (s *ServerSocket) handleEvent(ev event, connCb socket.ConnectionCallback, dataCb socket.DataCallback) {
	switch ev.kind {
	case evConnected:
		connCb(ev.client, socket.ConnStateConnected, nil)
	case evDisconnected:
		connCb(ev.client, socket.ConnStateDisconnected, nil)
	case evError:
		connCb(ev.client, socket.ConnStateError, ev.err)
	case evData:
		dataCb(ev.client, ev.data)
	}
}

// emit hands an event to the dispatcher without outliving a socket close
func (s *ServerSocket) emit(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// acceptLoop accepts connections until the listener is closed
func (s *ServerSocket) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				// regular shutdown
				return
			default:
			}

			if errors.Is(err, net.ErrClosed) {
				return
			}

			// the listener itself failed, stop serving events
			Logger.Errorf("%s accept error: %v", s.connector.GetName(), err)
			s.state.Store(int32(socket.StateError))
			return
		}

		select {
		case <-s.done:
			// lost the race against Close, drop the connection
			_ = conn.Close()
			return
		default:
		}

		if err := s.connector.Upgrade(conn, s.conf); err != nil {
			Logger.Warningf("failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
		}

		c := newClient(s.nextID.Add(1), conn)
		s.clients.Store(c.ID(), c)

		// the connected event is queued before the read loop starts, so it
		// is always dispatched before any data of the same connection
		s.emit(event{kind: evConnected, client: c})

		s.wg.Add(1)
		go s.readLoop(c)
	}
}

// readLoop reads from one connection until it closes. All events of a
// connection originate here, in order.
func (s *ServerSocket) readLoop(c *Client) {
	defer s.wg.Done()
	defer s.clients.Delete(c.ID())
	defer c.conn.Close()

	size := s.conf.Socket.RecvBufferSize
	if size <= 0 {
		size = defaultReadBufferSize
	}
	buf := make([]byte, size)

	for {
		n, err := c.conn.Read(buf)

		if n > 0 {
			// immutable snapshot, the read buffer is reused
			data := make([]byte, n)
			copy(data, buf[:n])
			s.emit(event{kind: evData, client: c, data: data})
		}

		if err == nil {
			continue
		}

		select {
		case <-s.done:
			// socket teardown, consumers are going away as well
			return
		default:
		}

		switch {
		case err == io.EOF:
			s.emit(event{kind: evDisconnected, client: c})
		case c.forced.Load() || errors.Is(err, net.ErrClosed):
			// closed on our side via DisconnectClient or Client.Close
			s.emit(event{kind: evDisconnected, client: c})
		default:
			s.emit(event{kind: evError, client: c, err: err})
		}
		return
	}
}
