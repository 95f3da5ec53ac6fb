package transport

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/yaumlabs/bridge/rpc/codec"
	"github.com/yaumlabs/bridge/rpc/common"
)

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

// Connection is one accepted and handshaken peer. It is owned exclusively
// by the Server; user code only ever sends on it. Lifecycle:
// handshaking -> active -> closing -> removed.
type Connection struct {
	// ID is an opaque identifier, unique per process.
	ID string
	// Remote is the peer's address at accept time.
	Remote string
	// Created is the time the connection became active.
	Created time.Time

	conn    net.Conn
	active  atomic.Bool
	writeMu sync.Mutex
}

// newConnection wraps an accepted socket after a successful handshake.
func newConnection(conn net.Conn) *Connection {
	c := &Connection{
		ID:      uuid.NewString(),
		Remote:  conn.RemoteAddr().String(),
		Created: time.Now(),
		conn:    conn,
	}
	c.active.Store(true)
	return c
}

// Active reports whether the connection is still in the server's set.
func (c *Connection) Active() bool {
	return c.active.Load()
}

// SendEnvelope serializes the envelope into a single frame and writes it
// atomically. Safe for concurrent callers; writes are serialized per
// connection so frames never interleave on the wire.
func (c *Connection) SendEnvelope(env *common.Envelope) error {
	payload, err := env.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	return c.sendRaw(codec.Encode(payload))
}

// sendToken writes a plaintext keepalive token, bypassing the framing.
func (c *Connection) sendToken(token string) error {
	return c.sendRaw([]byte(token))
}

// sendRaw performs one atomic write of a fully assembled buffer.
func (c *Connection) sendRaw(buf []byte) error {
	if !c.active.Load() {
		return fmt.Errorf("connection %s is closed", c.ID)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_, err := c.conn.Write(buf)
	return err
}

// close marks the connection inactive and closes the socket. Returns true
// on the first call only, so disconnect notifications fire exactly once.
func (c *Connection) close() bool {
	if !c.active.CompareAndSwap(true, false) {
		return false
	}
	_ = c.conn.Close()
	return true
}
