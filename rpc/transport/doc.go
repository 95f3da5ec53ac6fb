// Package transport implements the host side of the bridge wire protocol:
// the listening server, the per-connection handshake and receive loops,
// and the typed inbound messages those loops produce.
//
// Threading model: the server runs one accept goroutine plus one receive
// goroutine per connection. Receive loops never touch host state directly;
// everything they learn is pushed onto a single multi-producer queue that
// the host-side pump drains on the host's own execution turn. That queue
// is the thread-safety boundary of the whole system.
//
// Writes to a connection are serialized through a per-connection mutex and
// each frame is built into one contiguous buffer before a single write, so
// concurrent senders can never interleave frames on the wire.
package transport
