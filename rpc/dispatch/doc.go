// Package dispatch maps inbound request envelopes to registry entries,
// adapts their parameters, invokes the handler and packages the outcome
// into a response envelope.
//
// Error policy: an unknown command, a missing required parameter or a
// handler-declared failure all become error envelopes and leave the
// connection open. A panic inside a handler is caught at the dispatch
// boundary, logged with the stack and converted to an error envelope;
// nothing a handler does can crash the pump or the host process. Every
// invocation is timed; slow ones are logged but never cut off, because
// request timeouts belong to the client.
package dispatch
