package server

import mcp "github.com/nugget/mcpsdk"

// Context carries the identity of the connected peer and the negotiated
// session state a Service consults while answering a request. It is
// immutable; a Service must read it, never mutate it (spec.md §4.4).
type Context struct {
	// ClientID is a stable identifier for the connection, derived from
	// the transport (e.g. a WebSocket/HTTP session id).
	ClientID string

	// ProtocolVersion is the version negotiated during initialize.
	ProtocolVersion string

	// ClientInfo is the peer's advertised Implementation.
	ClientInfo mcp.Implementation

	// ClientCapabilities is the capability set the peer advertised.
	ClientCapabilities mcp.ClientCapabilities
}
