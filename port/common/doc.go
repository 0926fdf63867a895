// Package common provides configuration structures and utilities shared
// across the physical port system.
//
// The package focuses on:
//   - Configuration structures for ports and their sockets
//   - Custom logging implementation integrated with the dragonboat logger facade
//
// Key Components:
//
//   - PortConfig: Configuration for a physical port, covering the worker pool
//     size, the event loop dispatch timeout, socket buffer sizing hints and
//     TCP socket options.
//
//   - SocketConf / TCPConf: Buffer sizing hints applied to every socket type
//     and TCP specific options applied to accepted connections.
//
//   - Logger: Custom logging implementation that integrates with the
//     dragonboat logging system while providing consistent formatting across
//     the application.
package common
