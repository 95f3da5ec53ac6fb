// Package codec implements the frame layer of the bridge wire protocol:
// a start marker, a 4-byte little-endian payload length, the UTF-8 JSON
// payload and an end marker. The codec is pure encode/decode logic; it
// performs no I/O of its own beyond reading from the supplied stream and
// owns no goroutines.
//
// The decode side is deliberately forgiving: it scans past stray bytes on
// the wire until it finds a start marker (bounded), recognizes the
// plaintext PING/PONG keepalive tokens that travel outside the framing,
// and accepts a frame whose end marker was replaced by the closing brace
// of a valid JSON payload. That last leniency mirrors a framing bug
// observed in peers in the wild; tightening it would break
// interoperability with an unfixed peer, so it stays as a logged fallback.
package codec
