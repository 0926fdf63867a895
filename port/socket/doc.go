// Package socket defines the interfaces and abstractions for the transport
// primitives consumed by a physical port. It provides a common contract that
// all socket implementations must fulfill, keeping the port itself
// protocol-agnostic.
//
// The package focuses on:
//   - Defining clear interfaces for stream and datagram socket primitives
//   - Readiness-driven event dispatch through a blocking DispatchEvent call
//   - Enabling multiple implementations (TCP, SRT, UDP)
//
// Key Components:
//
//   - IServerSocket: Interface for stream sockets that accept connections and
//     surface per-connection lifecycle and data events.
//
//   - IDatagramSocket: Interface for connectionless sockets that surface
//     addressed packets.
//
//   - IClient: Handle to one accepted stream connection with a stable
//     identifier, used by the port to shard connections across workers.
package socket
