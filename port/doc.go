// Package port implements the physical port of a media server: one network
// endpoint, its event loop and a sharded worker pool that fans received data
// out to registered observers.
//
// # Architecture
//
// A port owns exactly one socket primitive (TCP, SRT or UDP, see the socket
// subpackages) and runs its blocking DispatchEvent call on a dedicated event
// loop goroutine. The loop translates socket events into observer
// notifications:
//
//   - Lifecycle events (connected, disconnected, error) fan out to the
//     observers synchronously on the event loop goroutine. They are rare and
//     cheap, and keeping them on one goroutine keeps them ordered with
//     respect to each other.
//
//   - Data events of stream sockets are enqueued to one of the port's
//     workers and processed there, so the event loop never waits on observer
//     work for payload data.
//
//   - Data events of datagram sockets fan out synchronously on the event
//     loop goroutine. Connectionless delivery has no per-connection ordering
//     contract to preserve, so the worker indirection buys nothing there.
//
// # Sharding
//
// The worker pool has a fixed size, chosen at Create. Each connection is
// assigned to the worker at index id % poolSize - a pure function of the
// stable connection identifier, never stored anywhere. All data of one
// connection is therefore processed by the same worker in arrival order,
// while different connections spread across the pool and proceed in
// parallel without head-of-line blocking each other.
//
// # Shutdown
//
// Close stops the workers (finishing their current task, discarding the
// rest of their queues), waits for the event loop to exit and closes the
// socket. After Close returns true, no observer is notified again.
package port
