// Package client implements the MCP client role: the typed operation
// surface a host application calls, and the inbound responders for
// server-originated sampling and roots requests (spec.md §4.3).
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	mcp "github.com/nugget/mcpsdk"
	"github.com/nugget/mcpsdk/session"
)

// Client wraps a session.Engine with the typed MCP client operations.
// Grounded on internal/mcp/client.go's method-per-operation shape
// (Initialize/ListTools/CallTool/Ping), generalized to the full
// resources/prompts/tools/logging/completion surface and to capability
// gating before every call, per spec.md §4.3.
type Client struct {
	engine *session.Engine
	cfg    *config
	logger *slog.Logger

	mu          sync.RWMutex
	initialized bool
	serverInfo  mcp.Implementation
	serverCaps  mcp.ServerCapabilities
}

// New builds a Client from the given options. The transport is
// constructed but not connected until Connect.
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	tr, err := cfg.buildTransport()
	if err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("mcp_role", "client")

	c := &Client{
		engine: session.NewEngine(tr, logger),
		cfg:    cfg,
		logger: logger,
	}
	c.engine.SetRequestHandler(c.handleInboundRequest)
	return c, nil
}

// Connect starts the transport and performs the initialize handshake
// (spec.md §4.2 lifecycle). On success the session is Ready.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.engine.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	c.engine.SetState(session.StateInitializing)

	params := &mcp.InitializeParams{
		ProtocolVersion: mcp.LatestProtocolVersion,
		Capabilities:    c.cfg.clientCapabilities(),
		ClientInfo:      c.cfg.implementation,
	}

	raw, err := c.engine.Request(ctx, mcp.MethodInitialize, params)
	if err != nil {
		_ = c.engine.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	var result mcp.InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		_ = c.engine.Close()
		return fmt.Errorf("unmarshal initialize result: %w", err)
	}

	if !mcp.IsSupportedProtocolVersion(result.ProtocolVersion) {
		_ = c.engine.Close()
		return fmt.Errorf("initialize: unsupported protocol version %q", result.ProtocolVersion)
	}

	c.mu.Lock()
	c.initialized = true
	c.serverInfo = result.ServerInfo
	c.serverCaps = result.Capabilities
	c.mu.Unlock()

	if err := c.engine.Notify(ctx, mcp.NotificationInitialized, nil); err != nil {
		_ = c.engine.Close()
		return fmt.Errorf("send initialized notification: %w", err)
	}

	c.engine.SetState(session.StateReady)
	c.logger.Info("mcp session ready",
		"server_name", result.ServerInfo.Name,
		"server_version", result.ServerInfo.Version,
		"protocol_version", result.ProtocolVersion,
	)
	return nil
}

// Close tears down the session and its transport. Idempotent.
func (c *Client) Close() error {
	return c.engine.Close()
}

// Events returns the channel of inbound notifications from the server:
// resources/listChanged, resources/updated, prompts/listChanged,
// tools/listChanged, logging/message, progress (spec.md §4.3).
func (c *Client) Events() <-chan *session.InboundNotification {
	return c.engine.Events()
}

// ServerInfo returns the peer Implementation recorded at handshake.
func (c *Client) ServerInfo() mcp.Implementation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// ServerCapabilities returns the capability set the server advertised.
func (c *Client) ServerCapabilities() mcp.ServerCapabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverCaps
}

// ListResources calls resources/list.
func (c *Client) ListResources(ctx context.Context, cursor string) (*mcp.ListResourcesResult, error) {
	if err := c.requirePeer(func(caps *mcp.ServerCapabilities) bool { return caps.HasResources() }, "resources"); err != nil {
		return nil, err
	}
	var result mcp.ListResourcesResult
	if err := c.call(ctx, mcp.MethodResourcesList, &mcp.CursorParams{Cursor: cursor}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ReadResource calls resources/read.
func (c *Client) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	if err := c.requirePeer(func(caps *mcp.ServerCapabilities) bool { return caps.HasResources() }, "resources"); err != nil {
		return nil, err
	}
	var result mcp.ReadResourceResult
	if err := c.call(ctx, mcp.MethodResourcesRead, &mcp.ReadResourceParams{URI: uri}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Subscribe calls resources/subscribe.
func (c *Client) Subscribe(ctx context.Context, uri string) error {
	if err := c.requirePeer(func(caps *mcp.ServerCapabilities) bool { return caps.HasResourcesSubscribe() }, "resources.subscribe"); err != nil {
		return err
	}
	return c.call(ctx, mcp.MethodResourcesSubscribe, &mcp.SubscribeParams{URI: uri}, nil)
}

// Unsubscribe calls resources/unsubscribe.
func (c *Client) Unsubscribe(ctx context.Context, uri string) error {
	if err := c.requirePeer(func(caps *mcp.ServerCapabilities) bool { return caps.HasResourcesSubscribe() }, "resources.subscribe"); err != nil {
		return err
	}
	return c.call(ctx, mcp.MethodResourcesUnsubscribe, &mcp.SubscribeParams{URI: uri}, nil)
}

// ListResourceTemplates calls resources/templates/list.
func (c *Client) ListResourceTemplates(ctx context.Context) (*mcp.ListResourceTemplatesResult, error) {
	if err := c.requirePeer(func(caps *mcp.ServerCapabilities) bool { return caps.HasResources() }, "resources"); err != nil {
		return nil, err
	}
	var result mcp.ListResourceTemplatesResult
	if err := c.call(ctx, mcp.MethodResourcesTemplatesList, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListPrompts calls prompts/list.
func (c *Client) ListPrompts(ctx context.Context, cursor string) (*mcp.ListPromptsResult, error) {
	if err := c.requirePeer(func(caps *mcp.ServerCapabilities) bool { return caps.HasPrompts() }, "prompts"); err != nil {
		return nil, err
	}
	var result mcp.ListPromptsResult
	if err := c.call(ctx, mcp.MethodPromptsList, &mcp.CursorParams{Cursor: cursor}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPrompt calls prompts/get.
func (c *Client) GetPrompt(ctx context.Context, name string, arguments map[string]string) (*mcp.GetPromptResult, error) {
	if err := c.requirePeer(func(caps *mcp.ServerCapabilities) bool { return caps.HasPrompts() }, "prompts"); err != nil {
		return nil, err
	}
	var result mcp.GetPromptResult
	if err := c.call(ctx, mcp.MethodPromptsGet, &mcp.GetPromptParams{Name: name, Arguments: arguments}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListTools calls tools/list.
func (c *Client) ListTools(ctx context.Context, cursor string) (*mcp.ListToolsResult, error) {
	if err := c.requirePeer(func(caps *mcp.ServerCapabilities) bool { return caps.HasTools() }, "tools"); err != nil {
		return nil, err
	}
	var result mcp.ListToolsResult
	if err := c.call(ctx, mcp.MethodToolsList, &mcp.CursorParams{Cursor: cursor}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CallTool calls tools/call.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error) {
	if err := c.requirePeer(func(caps *mcp.ServerCapabilities) bool { return caps.HasTools() }, "tools"); err != nil {
		return nil, err
	}
	var result mcp.CallToolResult
	if err := c.call(ctx, mcp.MethodToolsCall, &mcp.CallToolParams{Name: name, Arguments: arguments}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SetLogLevel calls logging/setLevel.
func (c *Client) SetLogLevel(ctx context.Context, level mcp.LoggingLevel) error {
	if err := c.requirePeer(func(caps *mcp.ServerCapabilities) bool { return caps.HasLogging() }, "logging"); err != nil {
		return err
	}
	return c.call(ctx, mcp.MethodLoggingSetLevel, &mcp.SetLevelParams{Level: level}, nil)
}

// Complete calls completion/complete.
func (c *Client) Complete(ctx context.Context, ref mcp.CompleteReference, arg mcp.CompleteArgument) (*mcp.CompleteResult, error) {
	if err := c.requirePeer(func(caps *mcp.ServerCapabilities) bool { return caps.HasCompletion() }, "completion"); err != nil {
		return nil, err
	}
	var result mcp.CompleteResult
	if err := c.call(ctx, mcp.MethodCompletionComplete, &mcp.CompleteParams{Ref: ref, Argument: arg}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Ping calls ping, a liveness check with no capability gate.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, mcp.MethodPing, &mcp.PingParams{}, nil)
}

// NotifyRootsListChanged tells the server the client's root set changed.
// Only meaningful after WithRootsListChanged(true) advertised the
// capability during initialize.
func (c *Client) NotifyRootsListChanged(ctx context.Context) error {
	return c.engine.Notify(ctx, mcp.NotificationRootsListChanged, nil)
}

// NotifyProgress reports progress for a long-running server request.
func (c *Client) NotifyProgress(ctx context.Context, params *mcp.ProgressParams) error {
	return c.engine.Notify(ctx, mcp.NotificationProgress, params)
}

// requirePeer runs check against the recorded server capabilities and
// fails locally with CapabilityMissing if it returns false — without a
// wire round trip (spec.md §3 invariant 4).
func (c *Client) requirePeer(check func(*mcp.ServerCapabilities) bool, name string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialized {
		return mcp.ErrInvalidState
	}
	if !check(&c.serverCaps) {
		return mcp.NewCapabilityMissing(name)
	}
	return nil
}

// call issues a request, applying the client's default request timeout
// when ctx carries no deadline, and unmarshals the result into out (if
// non-nil).
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	raw, err := c.engine.Request(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal %s result: %w", method, err)
	}
	return nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.cfg.requestTimeout)
}
