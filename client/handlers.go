package client

import (
	"context"
	"encoding/json"
	"fmt"

	mcp "github.com/nugget/mcpsdk"
)

// handleInboundRequest answers a server-originated request. Installed
// as the session.Engine's RequestHandler. Only sampling/createMessage
// and roots/list are legal here (spec.md §4.3); anything else the
// server sends to a client is MethodNotFound.
func (c *Client) handleInboundRequest(ctx context.Context, method string, params json.RawMessage) (any, *mcp.RPCError) {
	switch method {
	case mcp.MethodSamplingCreateMessage:
		return c.handleCreateMessage(ctx, params)
	case mcp.MethodRootsList:
		return c.handleRootsList(ctx, params)
	default:
		return nil, &mcp.RPCError{
			Code:    mcp.CodeMethodNotFound,
			Message: fmt.Sprintf("client does not handle server-originated method %q", method),
		}
	}
}

func (c *Client) handleCreateMessage(ctx context.Context, raw json.RawMessage) (any, *mcp.RPCError) {
	if !c.cfg.sampling {
		return nil, &mcp.RPCError{
			Code:    mcp.CodeCapabilityMissing,
			Message: "local sampling capability was not advertised",
		}
	}
	if c.cfg.samplingHandler == nil {
		return nil, &mcp.RPCError{
			Code:    mcp.CodeMethodNotFound,
			Message: "no sampling handler installed",
		}
	}

	var params mcp.CreateMessageParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &mcp.RPCError{Code: mcp.CodeInvalidParams, Message: err.Error()}
	}

	result, err := c.cfg.samplingHandler(ctx, &params)
	if err != nil {
		return nil, &mcp.RPCError{Code: mcp.CodeInternalError, Message: err.Error()}
	}
	return result, nil
}

func (c *Client) handleRootsList(ctx context.Context, raw json.RawMessage) (any, *mcp.RPCError) {
	if !c.cfg.roots {
		return nil, &mcp.RPCError{
			Code:    mcp.CodeCapabilityMissing,
			Message: "local roots capability was not advertised",
		}
	}
	if c.cfg.rootsHandler == nil {
		return nil, &mcp.RPCError{
			Code:    mcp.CodeMethodNotFound,
			Message: "no roots handler installed",
		}
	}

	roots, err := c.cfg.rootsHandler(ctx)
	if err != nil {
		return nil, &mcp.RPCError{Code: mcp.CodeInternalError, Message: err.Error()}
	}
	return &mcp.ListRootsResult{Roots: roots}, nil
}
