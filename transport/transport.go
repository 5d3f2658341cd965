// Package transport defines the pluggable duplex channel MCP sessions run
// over, and provides stdio, WebSocket, and streamable-HTTP backends
// (spec.md §4.1, §6).
//
// A Transport never interprets message contents or performs request/
// response correlation — that is session.Engine's job, so the same
// Transport implementation serves both the client and server roles. This
// generalizes internal/mcp/transport.go from the teacher, whose
// single-role Transport bundled Send with waiting for the matching
// response; a session multiplexing many concurrent in-flight requests
// over one connection (spec.md §2, §5) needs Send and Receive decoupled.
package transport

import (
	"context"

	"github.com/nugget/mcpsdk"
)

// Transport is a full-duplex channel carrying one JSON-RPC envelope per
// message unit (spec.md §4.1, GLOSSARY).
type Transport interface {
	// Connect establishes the underlying channel. After it returns nil,
	// Receive may yield messages.
	Connect(ctx context.Context) error

	// Send serializes and hands one envelope to the channel. It returns
	// once the envelope has been accepted for delivery, not once the
	// peer has acknowledged it.
	Send(ctx context.Context, env *mcp.Envelope) error

	// Receive yields the next inbound envelope. It must be cancel-safe:
	// an implementation must not drop a message that was already read
	// off the wire just because ctx was canceled before Receive
	// returned it — in practice this means a single owner (session.Engine)
	// calls Receive in a loop and the implementation buffers internally.
	// Receive returns io.EOF when the peer has cleanly closed the stream.
	Receive(ctx context.Context) (*mcp.Envelope, error)

	// Disconnect closes the channel. Idempotent.
	Disconnect() error

	// IsConnected reports best-effort liveness.
	IsConnected() bool
}
