package server

import (
	"context"
	"encoding/json"

	mcp "github.com/nugget/mcpsdk"
)

// Service answers inbound protocol requests for one connected client and
// is notified of its connection lifecycle. A host application supplies
// the Service; the SDK never interprets its domain logic — how it
// computes resource bytes, runs tools, or produces prompts is entirely
// the Service's concern (spec.md §4.4, out-of-scope list in §1).
type Service interface {
	// HandleRequest answers one inbound request. The returned Response's
	// populated field must match req.Kind; a mismatch is a programming
	// error in the Service implementation. Invocations run concurrently
	// per inbound request — the server does not serialize unrelated
	// requests from the same client, so a Service must synchronize its
	// own state.
	HandleRequest(ctx context.Context, sc *Context, req *Request) (*Response, error)

	// ClientConnected fires once a session reaches Ready.
	ClientConnected(ctx context.Context, sc *Context)

	// ClientDisconnected fires when Server.Close tears down a session
	// that had reached Ready. It is not called when the transport
	// closes without Close being called.
	ClientDisconnected(ctx context.Context, sc *Context)
}

// Kind identifies which field of a Request/Response is populated.
type Kind int

const (
	KindListResources Kind = iota
	KindReadResource
	KindSubscribe
	KindUnsubscribe
	KindListResourceTemplates
	KindListPrompts
	KindGetPrompt
	KindListTools
	KindCallTool
	KindSetLogLevel
	KindComplete
	KindPing
	KindExperimental
)

// Request is the tagged union of every inbound method the server role
// dispatches to a Service (spec.md §4.4). Exactly the field matching
// Kind is populated.
type Request struct {
	Kind Kind

	ListResources *mcp.CursorParams
	ReadResource  *mcp.ReadResourceParams
	Subscribe     *mcp.SubscribeParams
	Unsubscribe   *mcp.SubscribeParams
	ListPrompts   *mcp.CursorParams
	GetPrompt     *mcp.GetPromptParams
	ListTools     *mcp.CursorParams
	CallTool      *mcp.CallToolParams
	SetLogLevel   *mcp.SetLevelParams
	Complete      *mcp.CompleteParams
	Ping          *mcp.PingParams

	// ExperimentalMethod/ExperimentalParams carry any method not named
	// by the protocol's fixed vocabulary, for Kind == KindExperimental.
	ExperimentalMethod string
	ExperimentalParams json.RawMessage
}

// Response is the tagged union of results a Service returns; the field
// matching the originating Request's Kind must be populated (an empty
// Response is valid for Subscribe/Unsubscribe/SetLogLevel/Ping, whose
// wire result is an empty object).
type Response struct {
	ListResources         *mcp.ListResourcesResult
	ReadResource          *mcp.ReadResourceResult
	ListResourceTemplates *mcp.ListResourceTemplatesResult
	ListPrompts           *mcp.ListPromptsResult
	GetPrompt             *mcp.GetPromptResult
	ListTools             *mcp.ListToolsResult
	CallTool              *mcp.CallToolResult
	Complete              *mcp.CompleteResult
	Experimental          any
}

// resultFor extracts the wire result value for the given Kind from a
// Response, defaulting to an empty object for variants with no payload.
func (r *Response) resultFor(kind Kind) any {
	if r == nil {
		return struct{}{}
	}
	switch kind {
	case KindListResources:
		return r.ListResources
	case KindReadResource:
		return r.ReadResource
	case KindListResourceTemplates:
		return r.ListResourceTemplates
	case KindListPrompts:
		return r.ListPrompts
	case KindGetPrompt:
		return r.GetPrompt
	case KindListTools:
		return r.ListTools
	case KindCallTool:
		return r.CallTool
	case KindComplete:
		return r.Complete
	case KindExperimental:
		return r.Experimental
	default:
		return struct{}{}
	}
}
