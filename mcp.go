package mcp

import (
	"encoding/json"
	"fmt"
)

// protocolVersionWire is the JSON-RPC envelope version MCP rides on.
const protocolVersionWire = "2.0"

// ID identifies a JSON-RPC request and correlates it with its response.
// The side that originates a request chooses the id; MCP allows either an
// integer or a string, so ID stores whichever the wire carried and is
// comparable (usable as a map key) so the pending-request table in
// package session can key directly off it.
type ID struct {
	str      string
	num      int64
	isString bool
}

// NewID wraps an int64, the form this SDK uses for every id it originates.
func NewID(n int64) ID { return ID{num: n} }

// NewStringID wraps a string id, used when decoding ids chosen by a peer.
func NewStringID(s string) ID { return ID{str: s, isString: true} }

// String renders the id for logging.
func (id ID) String() string {
	if id.isString {
		return id.str
	}
	return fmt.Sprintf("%d", id.num)
}

// MarshalJSON encodes the id in whichever form it was constructed with.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.isString {
		return json.Marshal(id.str)
	}
	return json.Marshal(id.num)
}

// UnmarshalJSON accepts either a JSON number or a JSON string, per the
// MCP id union (spec.md §3).
func (id *ID) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil && data[0] != '"' {
		i, err := n.Int64()
		if err != nil {
			return fmt.Errorf("decode numeric id %q: %w", n, err)
		}
		*id = ID{num: i}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode id: neither number nor string: %s", string(data))
	}
	*id = ID{str: s, isString: true}
	return nil
}

// Envelope classifies one decoded wire message as a Request, Response, or
// Notification so session.Engine can demultiplex it (spec.md §3, §4.2).
type Envelope struct {
	Request      *Request
	Response     *Response
	Notification *Notification
}

// Kind describes which variant an Envelope holds.
type Kind int

const (
	// KindInvalid marks an envelope that failed to classify.
	KindInvalid Kind = iota
	KindRequest
	KindResponse
	KindNotification
)

// Kind reports which of Request/Response/Notification is populated.
func (e *Envelope) Kind() Kind {
	switch {
	case e.Request != nil:
		return KindRequest
	case e.Response != nil:
		return KindResponse
	case e.Notification != nil:
		return KindNotification
	default:
		return KindInvalid
	}
}

// wireMessage is the superset of fields used to classify an inbound
// envelope before fully typing it: a message with "method" and no "id" is
// a Notification, one with "method" and "id" is a Request, one with "id"
// and no "method" is a Response.
type wireMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// DecodeEnvelope classifies and fully decodes one JSON-RPC wire message.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var wm wireMessage
	if err := json.Unmarshal(data, &wm); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch {
	case wm.Method != "" && wm.ID == nil:
		return &Envelope{Notification: &Notification{
			JSONRPC: wm.JSONRPC,
			Method:  wm.Method,
			Params:  wm.Params,
		}}, nil
	case wm.Method != "" && wm.ID != nil:
		return &Envelope{Request: &Request{
			JSONRPC: wm.JSONRPC,
			ID:      *wm.ID,
			Method:  wm.Method,
			Params:  wm.Params,
		}}, nil
	case wm.ID != nil:
		return &Envelope{Response: &Response{
			JSONRPC: wm.JSONRPC,
			ID:      *wm.ID,
			Result:  wm.Result,
			Error:   wm.Error,
		}}, nil
	default:
		return nil, fmt.Errorf("decode envelope: neither method nor id present")
	}
}

// Request is a JSON-RPC 2.0 request: a method call that expects exactly
// one terminal Response (spec.md §3, invariant 1).
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewRequest builds a Request with the given id, method, and params. params
// may be any JSON-marshalable value or nil.
func NewRequest(id ID, method string, params any) (*Request, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params for %s: %w", method, err)
	}
	return &Request{JSONRPC: protocolVersionWire, ID: id, Method: method, Params: raw}, nil
}

// Response is a JSON-RPC 2.0 response. Exactly one of Result or Error is
// populated in a well-formed response (spec.md §3).
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// NewResultResponse builds a successful Response for id carrying result.
func NewResultResponse(id ID, result any) (*Response, error) {
	raw, err := marshalParams(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &Response{JSONRPC: protocolVersionWire, ID: id, Result: raw}, nil
}

// NewErrorResponse builds a failed Response for id carrying rpcErr.
func NewErrorResponse(id ID, rpcErr *RPCError) *Response {
	return &Response{JSONRPC: protocolVersionWire, ID: id, Error: rpcErr}
}

// Notification is a JSON-RPC 2.0 notification: fire-and-forget, never
// answered (spec.md §3, invariant 3).
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewNotification builds a Notification for method with params, which may
// be any JSON-marshalable value or nil.
func NewNotification(method string, params any) (*Notification, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params for %s: %w", method, err)
	}
	return &Notification{JSONRPC: protocolVersionWire, Method: method, Params: raw}, nil
}

func marshalParams(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}
