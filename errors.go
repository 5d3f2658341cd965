package mcp

import (
	"errors"
	"fmt"
)

// JSON-RPC reserved error codes (spec.md §4.5, §6).
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeCapabilityMissing is in the MCP-reserved range above the
	// standard JSON-RPC codes; used when a local capability check fails
	// without a round trip, and also valid as a peer-returned error code.
	CodeCapabilityMissing = -32000
)

// RPCError is a JSON-RPC 2.0 error object, also used as the Go error type
// surfaced to callers when a peer returns one (spec.md §4.5).
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// ProtocolError is the exported alias callers type-assert or errors.As
// against for a peer-returned JSON-RPC error (spec.md §4.5).
type ProtocolError = RPCError

var (
	// ErrTimeout means a request's deadline elapsed before a response
	// arrived (spec.md §4.5, §5).
	ErrTimeout = errors.New("mcp: request timed out")

	// ErrCanceled means the caller canceled a request before it
	// completed (spec.md §4.5, §5).
	ErrCanceled = errors.New("mcp: request canceled")

	// ErrDisconnected means the session was not Ready, or tore down,
	// while the operation was outstanding (spec.md §4.5).
	ErrDisconnected = errors.New("mcp: session disconnected")

	// ErrInvalidState means an operation was issued in a session state
	// that does not permit it, e.g. a second initialize (spec.md §4.5).
	ErrInvalidState = errors.New("mcp: invalid session state")
)

// CapabilityMissingError is returned when a local capability pre-check
// fails: the peer never advertised support, so the call fails without
// contacting it (spec.md §3 invariant 4, §4.5).
type CapabilityMissingError struct {
	// Capability is the dotted capability name, e.g. "sampling" or
	// "resources.subscribe".
	Capability string
	// Side names which side's declared capabilities were checked,
	// "local" or "peer".
	Side string
}

// Error implements the error interface.
func (e *CapabilityMissingError) Error() string {
	return fmt.Sprintf("mcp: %s capability %q not advertised", e.Side, e.Capability)
}

// NewCapabilityMissing builds a CapabilityMissingError for a check against
// the peer's advertised capabilities — the common case (spec.md §4.3: "the
// client... fails locally with CapabilityMissing if unsupported").
func NewCapabilityMissing(capability string) error {
	return &CapabilityMissingError{Capability: capability, Side: "peer"}
}
