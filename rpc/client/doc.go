// Package client implements the remote side of the bridge protocol: it
// connects, performs the plaintext handshake, multiplexes concurrent
// requests over the single connection with correlation ids, keeps the
// link alive with periodic pings and serves unsolicited requests from the
// peer through a small client-local handler set.
//
// Connect itself never retries; reconnect policy lives in the
// ConnectionManager so the embedding code decides when reconnecting is
// appropriate.
package client
