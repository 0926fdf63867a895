package port

import (
	"fmt"
	"net"
	"strings"

	"github.com/streamforge/physport/port/socket"
)

// --------------------------------------------------------------------------
// Enumerations
// --------------------------------------------------------------------------

// SocketType selects the transport primitive a port runs on
type SocketType int

const (
	// SocketUnknown is the zero value, Create rejects it
	SocketUnknown SocketType = iota
	// SocketTCP is a stream listener
	SocketTCP
	// SocketSRT is a reliable datagram listener (stream semantics, the
	// handshake is handled by the primitive)
	SocketSRT
	// SocketUDP is a connectionless datagram socket
	SocketUDP
)

func (t SocketType) String() string {
	switch t {
	case SocketTCP:
		return "tcp"
	case SocketSRT:
		return "srt"
	case SocketUDP:
		return "udp"
	default:
		return "unknown"
	}
}

// ParseSocketType converts a string to a SocketType
func ParseSocketType(s string) (SocketType, error) {
	switch strings.ToLower(s) {
	case "tcp":
		return SocketTCP, nil
	case "srt":
		return SocketSRT, nil
	case "udp":
		return SocketUDP, nil
	default:
		return SocketUnknown, fmt.Errorf("invalid socket type: %s (expected one of: tcp, srt, udp)", s)
	}
}

// DisconnectReason tags why a connection went away
type DisconnectReason int

const (
	// ReasonDisconnected is a clean close, remote or forced on our side
	ReasonDisconnected DisconnectReason = iota
	// ReasonError is a transport-level failure of the connection
	ReasonError
)

func (r DisconnectReason) String() string {
	switch r {
	case ReasonDisconnected:
		return "disconnected"
	case ReasonError:
		return "error"
	default:
		return "unknown"
	}
}

// State describes the lifecycle of a port
type State int32

const (
	// StateClosed means the port has no active socket
	StateClosed State = iota
	// StateStarting means Create is underway
	StateStarting
	// StateOpen means the event loop is running
	StateOpen
	// StateStopping means Close is underway
	StateStopping
	// StateError means the socket stopped serving on its own
	StateError
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateStarting:
		return "starting"
	case StateOpen:
		return "open"
	case StateStopping:
		return "stopping"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Observer
// --------------------------------------------------------------------------

// IObserver is the reaction surface of a port. Observers are registered
// dynamically and invoked either on the port's event loop goroutine
// (lifecycle events, datagram data) or on a worker goroutine (stream data) -
// never on a goroutine the observer controls itself.
type IObserver interface {
	// OnConnected is invoked once per accepted stream connection
	OnConnected(client socket.IClient)

	// OnDisconnected is invoked once when a stream connection goes away.
	// err is only set for ReasonError.
	OnDisconnected(client socket.IClient, reason DisconnectReason, err error)

	// OnDataReceived is invoked for every payload. For stream sockets
	// client identifies the connection and remote is its peer address;
	// for datagram sockets client is nil and remote is the packet source.
	OnDataReceived(client socket.IClient, remote net.Addr, data []byte)
}

// --------------------------------------------------------------------------
// Port
// --------------------------------------------------------------------------

// IPort owns one network endpoint: its socket primitive, its event loop
// goroutine, its worker pool and its observer list.
type IPort interface {
	// Create binds the port. The buffer sizes are hints for the socket,
	// zero keeps the configured defaults. Returns false if the port is not
	// closed or the socket cannot be prepared; in that case no goroutines
	// are left running.
	Create(socketType SocketType, endpoint string, sendBufferSize, recvBufferSize int) bool

	// Close stops the workers and the event loop and closes the socket.
	// Returns true only if the socket reached its closed state; after a
	// true return no further observer notification occurs.
	Close() bool

	// GetState returns the current port state
	GetState() State

	// LocalAddr returns the bound address, nil while closed
	LocalAddr() net.Addr

	// AddObserver registers an observer. The port never owns the
	// observer's lifetime.
	AddObserver(observer IObserver) bool

	// RemoveObserver unregisters an observer. Returns false if it was not
	// registered.
	RemoveObserver(observer IObserver) bool

	// DisconnectClient forcibly closes one accepted connection.
	// Stream socket types only.
	DisconnectClient(client socket.IClient) bool
}
