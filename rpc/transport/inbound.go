package transport

import (
	"github.com/yaumlabs/bridge/rpc/common"
)

// --------------------------------------------------------------------------
// Inbound Message Structure
// --------------------------------------------------------------------------

// InboundKind discriminates the payload of an Inbound message.
type InboundKind uint8

const (
	// InboundJSON carries a decoded envelope from a connection.
	InboundJSON InboundKind = iota
	// InboundError carries a transport-level error description.
	InboundError
	// InboundConnect announces a connection that completed its handshake.
	InboundConnect
	// InboundDisconnect announces a removed connection.
	InboundDisconnect
	// InboundStatus carries an informational transport status line.
	InboundStatus
)

// String returns the string representation of an InboundKind.
func (k InboundKind) String() string {
	switch k {
	case InboundJSON:
		return "json"
	case InboundError:
		return "error"
	case InboundConnect:
		return "connect"
	case InboundDisconnect:
		return "disconnect"
	case InboundStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Inbound is one unit of work produced by a background receive loop and
// consumed only by the host pump. Which fields are set depends on Kind.
type Inbound struct {
	Kind InboundKind

	// InboundJSON
	Envelope *common.Envelope

	// InboundJSON, InboundConnect, InboundDisconnect
	Conn *Connection

	// InboundError, InboundDisconnect (reason), InboundStatus
	Text string

	// InboundStatus severity: "debug", "info" or "warn"
	Level string
}

// --------------------------------------------------------------------------
// Inbound Factory Functions
// --------------------------------------------------------------------------

// NewJSONMessage wraps a decoded envelope and its source connection.
func NewJSONMessage(env *common.Envelope, conn *Connection) *Inbound {
	return &Inbound{Kind: InboundJSON, Envelope: env, Conn: conn}
}

// NewErrorNotice wraps a transport error description.
func NewErrorNotice(text string) *Inbound {
	return &Inbound{Kind: InboundError, Text: text}
}

// NewConnectNotice announces a newly active connection.
func NewConnectNotice(conn *Connection) *Inbound {
	return &Inbound{Kind: InboundConnect, Conn: conn}
}

// NewDisconnectNotice announces a removed connection with a reason.
func NewDisconnectNotice(conn *Connection, reason string) *Inbound {
	return &Inbound{Kind: InboundDisconnect, Conn: conn, Text: reason}
}

// NewStatusNotice wraps an informational status line.
func NewStatusNotice(text, level string) *Inbound {
	return &Inbound{Kind: InboundStatus, Text: text, Level: level}
}
