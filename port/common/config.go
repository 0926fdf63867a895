package common

import (
	"fmt"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	// DefaultWorkerCount is the number of workers a port starts for
	// stream sockets. Every accepted connection is pinned to exactly
	// one of these workers for its entire lifetime.
	DefaultWorkerCount = 16

	// DefaultDispatchTimeout bounds a single DispatchEvent call of the
	// event loop. It only controls how quickly the loop notices a stop
	// request, not per-event latency.
	DefaultDispatchTimeout = 500 * time.Millisecond
)

// --------------------------------------------------------------------------
// Port configuration structs
// --------------------------------------------------------------------------

// SocketConf holds buffer sizing hints that apply to every socket type
type SocketConf struct {
	// SendBufferSize is the socket send buffer size in bytes (0 = OS default)
	SendBufferSize int
	// RecvBufferSize is the socket receive buffer size in bytes (0 = OS default)
	RecvBufferSize int
}

// TCPConf holds TCP specific socket options applied to accepted connections
type TCPConf struct {
	// TCPNoDelay disables Nagle's algorithm when true
	TCPNoDelay bool
	// TCPKeepAliveSec enables keep-alive with the given period (0 = disabled)
	TCPKeepAliveSec int
	// TCPLingerSec sets SO_LINGER (negative = OS default)
	TCPLingerSec int
}

// PortConfig holds all configuration parameters for a physical port.
type PortConfig struct {
	// WorkerCount is the fixed size of the worker pool for stream sockets
	WorkerCount int

	// DispatchTimeout bounds one event loop iteration
	DispatchTimeout time.Duration

	Socket SocketConf
	TCP    TCPConf

	// Logging configuration
	LogLevel string
}

// DefaultPortConfig returns the reference configuration: 16 workers and a
// 500 ms dispatch timeout, matching the behavior tuned for media workloads.
func DefaultPortConfig() PortConfig {
	return PortConfig{
		WorkerCount:     DefaultWorkerCount,
		DispatchTimeout: DefaultDispatchTimeout,
		TCP: TCPConf{
			TCPNoDelay:   true,
			TCPLingerSec: -1,
		},
		LogLevel: "info",
	}
}

// Validate normalizes the configuration, falling back to defaults for
// unset or nonsensical values.
func (c *PortConfig) Validate() {
	if c.WorkerCount <= 0 {
		c.WorkerCount = DefaultWorkerCount
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = DefaultDispatchTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// String returns a formatted string representation of the configuration
func (c *PortConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Dispatch")
	addField("Workers", fmt.Sprintf("%d", c.WorkerCount))
	addField("Dispatch Timeout", c.DispatchTimeout.String())

	addSection("Socket")
	addField("Send Buffer", fmt.Sprintf("%d bytes", c.Socket.SendBufferSize))
	addField("Recv Buffer", fmt.Sprintf("%d bytes", c.Socket.RecvBufferSize))

	addSection("TCP")
	addField("No Delay", fmt.Sprintf("%t", c.TCP.TCPNoDelay))
	addField("Keep Alive", fmt.Sprintf("%d sec", c.TCP.TCPKeepAliveSec))
	addField("Linger", fmt.Sprintf("%d sec", c.TCP.TCPLingerSec))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
