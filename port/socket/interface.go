package socket

import (
	"net"
	"time"

	"github.com/streamforge/physport/port/common"
)

// --------------------------------------------------------------------------
// Socket States
// --------------------------------------------------------------------------

// State describes the lifecycle of a socket primitive
type State int32

const (
	// StateCreated is the initial state before Prepare succeeded
	StateCreated State = iota
	// StateListening means the socket is bound and serving events
	StateListening
	// StateClosed means the socket has been shut down
	StateClosed
	// StateError means the socket failed and stopped serving events
	StateError
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateListening:
		return "listening"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ConnState describes a lifecycle transition of one accepted connection
type ConnState int

const (
	// ConnStateConnected is reported once per accepted connection
	ConnStateConnected ConnState = iota
	// ConnStateDisconnected is reported on a clean remote or forced close
	ConnStateDisconnected
	// ConnStateError is reported when the connection failed
	ConnStateError
)

// --------------------------------------------------------------------------
// Connection handle
// --------------------------------------------------------------------------

// IClient is the handle to one accepted stream connection. The id is stable
// for the lifetime of the connection and is what the port shards on.
type IClient interface {
	// ID returns the monotonically assigned connection identifier
	ID() uint64

	// RemoteAddr returns the peer address
	RemoteAddr() net.Addr

	// LocalAddr returns the local address of the connection
	LocalAddr() net.Addr

	// Send writes data to the peer. Safe for concurrent use.
	Send(data []byte) error

	// Close closes the connection. The socket reports the close to its
	// dispatcher as a regular disconnect, not as an error.
	Close() error

	// String returns a printable description for logging
	String() string
}

// --------------------------------------------------------------------------
// Dispatch callbacks
// --------------------------------------------------------------------------

// ConnectionCallback is invoked on the dispatching goroutine for every
// lifecycle transition of an accepted connection. err is only set for
// ConnStateError.
type ConnectionCallback func(client IClient, state ConnState, err error)

// DataCallback is invoked on the dispatching goroutine for every chunk of
// data read from an accepted connection. The slice is an immutable snapshot
// owned by the callee.
type DataCallback func(client IClient, data []byte)

// DatagramCallback is invoked on the dispatching goroutine for every packet
// received on a datagram socket.
type DatagramCallback func(remote net.Addr, data []byte)

// --------------------------------------------------------------------------
// Socket primitives
// --------------------------------------------------------------------------

// IServerSocket is the stream transport primitive: it accepts connections
// and surfaces their lifecycle and data through DispatchEvent.
type IServerSocket interface {
	// Prepare binds the socket to the given endpoint and starts accepting
	Prepare(endpoint string, conf common.PortConfig) error

	// DispatchEvent blocks up to timeout, processes ready events by
	// invoking the callbacks on the calling goroutine, and returns false
	// once the socket should stop being dispatched
	DispatchEvent(connCb ConnectionCallback, dataCb DataCallback, timeout time.Duration) bool

	// DisconnectClient forcibly closes one accepted connection. Returns
	// false if the connection is not known (already gone).
	DisconnectClient(client IClient) bool

	// LocalAddr returns the bound address
	LocalAddr() net.Addr

	// Close shuts the socket down. Idempotent. Returns true once the
	// socket reached the closed state.
	Close() bool

	// GetState returns the current socket state
	GetState() State
}

// IDatagramSocket is the connectionless transport primitive.
type IDatagramSocket interface {
	// Prepare binds the socket to the given endpoint
	Prepare(endpoint string, conf common.PortConfig) error

	// DispatchEvent blocks up to timeout, delivers ready packets to the
	// callback on the calling goroutine, and returns false once the
	// socket should stop being dispatched
	DispatchEvent(dataCb DatagramCallback, timeout time.Duration) bool

	// LocalAddr returns the bound address
	LocalAddr() net.Addr

	// Close shuts the socket down. Idempotent. Returns true once the
	// socket reached the closed state.
	Close() bool

	// GetState returns the current socket state
	GetState() State
}
