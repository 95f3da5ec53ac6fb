// Package rpc contains the bridge communication stack: the framed wire
// protocol between a remote client and an embedded host application, the
// connection lifecycle on both sides, and the command dispatch machinery
// between the raw socket and the registered operations.
//
// The package is organized into several subpackages:
//
//   - common: the JSON envelope, protocol constants, configuration
//     structures and the logging facade shared by every subsystem.
//
//   - codec: pure encode/decode of the marker-bounded, length-prefixed
//     frame format, including resynchronization and keepalive detection.
//
//   - transport: the host-side server - accept loop, handshake,
//     per-connection receive loops and the inbound message queue.
//
//   - pump: the single-threaded consumer the embedding application drives
//     once per tick to drain the inbound queue on its own thread.
//
//   - registry: the name-indexed table of invocable operations with
//     declared parameters and the naming-convention helpers.
//
//   - dispatch: request resolution, parameter adaptation, handler
//     invocation and response packaging.
//
//   - client: the remote side - connect/handshake, request correlation,
//     keepalive pings and the reconnect manager.
package rpc
