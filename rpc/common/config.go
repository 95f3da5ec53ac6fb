package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Shared socket configuration
// --------------------------------------------------------------------------

// SocketConf holds socket tuning options shared by server and client.
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
	TCPNoDelay      bool
	TCPKeepAliveSec int
}

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters for the host-side server.
type ServerConfig struct {
	// Listen address, e.g. "localhost:8080"
	Endpoint string

	// Protocol limits
	MaxMessageSize      int
	HandshakeTimeoutSec int

	// Host pump settings
	PumpBudget      time.Duration // max wall time per Drain call
	PumpMaxMessages int           // max messages per Drain call
	QueueHighWater  int           // queue depth that triggers a warning

	// Socket tuning
	Socket SocketConf

	// Logging configuration
	LogLevel string
}

// DefaultServerConfig returns a server configuration with the wire
// protocol defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Endpoint:            "localhost:8080",
		MaxMessageSize:      10 * 1024 * 1024,
		HandshakeTimeoutSec: 10,
		PumpBudget:          3 * time.Millisecond,
		PumpMaxMessages:     64,
		QueueHighWater:      512,
		Socket: SocketConf{
			TCPNoDelay: true,
		},
		LogLevel: "info",
	}
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Bridge Server")
	addField("Endpoint", c.Endpoint)
	addField("Max Message Size", fmt.Sprintf("%d bytes", c.MaxMessageSize))
	addField("Handshake Timeout", fmt.Sprintf("%d sec", c.HandshakeTimeoutSec))

	addSection("Host Pump")
	addField("Budget", c.PumpBudget.String())
	addField("Max Messages / Tick", strconv.Itoa(c.PumpMaxMessages))
	addField("Queue High Water", strconv.Itoa(c.QueueHighWater))

	addSection("Socket")
	addField("TCP No Delay", strconv.FormatBool(c.Socket.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.Socket.TCPKeepAliveSec))
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.Socket.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Socket.ReadBufferSize))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all configuration parameters for the remote client.
type ClientConfig struct {
	// Server address, e.g. "localhost:8080"
	Endpoint string

	// Per-request timeout. The client owns request timeouts, the host never
	// enforces one.
	RequestTimeout time.Duration

	// Keepalive interval for the plaintext ping
	PingInterval time.Duration

	// Protocol limits
	MaxMessageSize      int
	HandshakeTimeoutSec int

	// Reconnect policy (used by the ConnectionManager, never by Connect)
	ReconnectAttempts int
	ReconnectDelay    time.Duration

	// Socket tuning
	Socket SocketConf

	// Logging configuration
	LogLevel string
}

// DefaultClientConfig returns a client configuration with the wire
// protocol defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Endpoint:            "localhost:8080",
		RequestTimeout:      60 * time.Second,
		PingInterval:        30 * time.Second,
		MaxMessageSize:      10 * 1024 * 1024,
		HandshakeTimeoutSec: 10,
		ReconnectAttempts:   5,
		ReconnectDelay:      2 * time.Second,
		Socket: SocketConf{
			TCPNoDelay: true,
		},
		LogLevel: "info",
	}
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Bridge Client")
	addField("Endpoint", c.Endpoint)
	addField("Request Timeout", c.RequestTimeout.String())
	addField("Ping Interval", c.PingInterval.String())
	addField("Max Message Size", fmt.Sprintf("%d bytes", c.MaxMessageSize))
	addField("Handshake Timeout", fmt.Sprintf("%d sec", c.HandshakeTimeoutSec))

	addSection("Reconnect")
	addField("Attempts", strconv.Itoa(c.ReconnectAttempts))
	addField("Delay", c.ReconnectDelay.String())

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
