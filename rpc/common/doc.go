// Package common provides the core data structures shared across the bridge
// RPC system: the JSON envelope exchanged between client and host, the
// configuration structures for both sides of the transport, and the logging
// facade used by every subsystem.
//
// The package focuses on:
//   - Defining the request/response envelope and its factory functions
//   - Holding the wire protocol constants (markers, tokens, limits)
//   - Providing named loggers with a globally configurable level
package common
