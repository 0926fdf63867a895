// Package base implements the shared machinery of stream server sockets.
// Protocol specific packages (tcp, srt) inject an IServerConnector and reuse
// the accept loop, the per-connection read goroutines and the event queue
// that backs the blocking DispatchEvent contract.
package base
