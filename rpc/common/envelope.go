package common

import (
	"encoding/json"
	"time"
)

// --------------------------------------------------------------------------
// Wire Protocol Constants
// --------------------------------------------------------------------------

const (
	// HandshakeRequest is the plaintext token a client must send before any
	// framed traffic. HandshakeResponse is the token the host answers with.
	HandshakeRequest  = "YAUM_HANDSHAKE_REQUEST"
	HandshakeResponse = "YAUM_HANDSHAKE_RESPONSE"

	// PingToken and PongToken are the plaintext keepalive literals. They are
	// sent and answered outside the frame markers.
	PingToken = "PING"
	PongToken = "PONG"

	// ResourceDispatchName is the reserved command name for generic resource
	// access. The real resource name travels inside the outer parameters.
	ResourceDispatchName = "access_resource"
)

const (
	// StatusSuccess and StatusError are the only valid response statuses.
	StatusSuccess = "success"
	StatusError   = "error"

	// TypeResponse marks an envelope as a response to a prior request.
	TypeResponse = "response"
)

// --------------------------------------------------------------------------
// Envelope Structure
// --------------------------------------------------------------------------

// Envelope is the JSON object carried inside a frame's payload. It is used
// for both requests and responses; which fields are set depends on the
// direction. The ID field correlates a request with its response, the
// timestamp fields are informational echoes only.
type Envelope struct {
	ID      string `json:"id"`
	Command string `json:"command,omitempty"`

	// Parameters is kept raw so the dispatcher can normalize the container
	// shape (nested object vs. flat map) itself.
	Parameters json.RawMessage `json:"parameters,omitempty"`

	// Response only fields
	Type   string      `json:"type,omitempty"`
	Status string      `json:"status,omitempty"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`

	// Informational echoes (unix milliseconds), not part of correlation
	ClientTimestamp int64 `json:"client_timestamp,omitempty"`
	ServerTimestamp int64 `json:"server_timestamp,omitempty"`
}

// IsRequest reports whether the envelope carries a command invocation.
func (e *Envelope) IsRequest() bool {
	return e.Command != "" && e.Type != TypeResponse
}

// IsResponse reports whether the envelope answers a prior request.
func (e *Envelope) IsResponse() bool {
	return e.Type == TypeResponse || e.Status != ""
}

// Encode serializes the envelope to its JSON wire form.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope parses a frame payload into an envelope.
func DecodeEnvelope(payload []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// --------------------------------------------------------------------------
// Envelope Factory Functions
// --------------------------------------------------------------------------

// NewRequest creates a request envelope for the given command. Parameters
// may be nil for commands that take none.
func NewRequest(id, command string, parameters json.RawMessage) *Envelope {
	return &Envelope{
		ID:              id,
		Command:         command,
		Parameters:      parameters,
		ClientTimestamp: NowMillis(),
	}
}

// NewSuccessResponse creates a success response for the request envelope.
// The client timestamp of the request is echoed back unchanged.
func NewSuccessResponse(req *Envelope, result interface{}) *Envelope {
	return &Envelope{
		ID:              req.ID,
		Type:            TypeResponse,
		Status:          StatusSuccess,
		Result:          result,
		ClientTimestamp: req.ClientTimestamp,
		ServerTimestamp: NowMillis(),
	}
}

// NewErrorResponse creates an error response for the request envelope. The
// message must be non-empty; every failed request yields a readable error.
func NewErrorResponse(req *Envelope, message string) *Envelope {
	if message == "" {
		message = "unknown error"
	}
	return &Envelope{
		ID:              req.ID,
		Type:            TypeResponse,
		Status:          StatusError,
		Error:           message,
		ClientTimestamp: req.ClientTimestamp,
		ServerTimestamp: NowMillis(),
	}
}

// NowMillis returns the current time as unix milliseconds, the unit used by
// the envelope timestamp fields.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
