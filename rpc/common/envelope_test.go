package common

import (
	"encoding/json"
	"testing"
)

// TestEnvelopeClassification verifies the request/response discrimination
func TestEnvelopeClassification(t *testing.T) {
	cases := []struct {
		name       string
		env        Envelope
		isRequest  bool
		isResponse bool
	}{
		{"request", Envelope{ID: "r1", Command: "echo"}, true, false},
		{"success response", Envelope{ID: "r1", Type: TypeResponse, Status: StatusSuccess}, false, true},
		{"error response", Envelope{ID: "r1", Status: StatusError}, false, true},
		{"empty", Envelope{ID: "r1"}, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.env.IsRequest(); got != tc.isRequest {
				t.Errorf("IsRequest() = %v, want %v", got, tc.isRequest)
			}
			if got := tc.env.IsResponse(); got != tc.isResponse {
				t.Errorf("IsResponse() = %v, want %v", got, tc.isResponse)
			}
		})
	}
}

// TestResponseFactories verifies id correlation and timestamp echoing
func TestResponseFactories(t *testing.T) {
	req := NewRequest("req_abc", "take_screenshot", json.RawMessage(`{"width":800}`))
	if req.ClientTimestamp == 0 {
		t.Error("request should carry a client timestamp")
	}

	t.Run("success", func(t *testing.T) {
		resp := NewSuccessResponse(req, map[string]any{"path": "/tmp/x.png"})
		if resp.ID != req.ID {
			t.Errorf("response id %s does not match request id %s", resp.ID, req.ID)
		}
		if resp.Status != StatusSuccess || resp.Type != TypeResponse {
			t.Errorf("unexpected status %s / type %s", resp.Status, resp.Type)
		}
		if resp.ClientTimestamp != req.ClientTimestamp {
			t.Error("client timestamp must be echoed unchanged")
		}
		if resp.ServerTimestamp == 0 {
			t.Error("response should carry a server timestamp")
		}
	})

	t.Run("error", func(t *testing.T) {
		resp := NewErrorResponse(req, "it broke")
		if resp.Status != StatusError || resp.Error != "it broke" {
			t.Errorf("unexpected error response: %+v", resp)
		}
	})

	t.Run("empty error message", func(t *testing.T) {
		resp := NewErrorResponse(req, "")
		if resp.Error == "" {
			t.Error("error responses must always carry a readable message")
		}
	})
}

// TestEnvelopeWireForm verifies the snake_case field names on the wire
func TestEnvelopeWireForm(t *testing.T) {
	req := NewRequest("req_abc", "echo", json.RawMessage(`{"v":1}`))
	payload, err := req.Encode()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var wire map[string]any
	if err := json.Unmarshal(payload, &wire); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	for _, field := range []string{"id", "command", "parameters", "client_timestamp"} {
		if _, ok := wire[field]; !ok {
			t.Errorf("wire form missing field %s", field)
		}
	}

	decoded, err := DecodeEnvelope(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.ID != req.ID || decoded.Command != req.Command {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
}
