// Package server implements the MCP server role: it answers client
// requests by delegating to a user-supplied Service, and it may itself
// originate sampling/roots requests and broadcast notifications
// (spec.md §4.4).
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	mcp "github.com/nugget/mcpsdk"
	"github.com/nugget/mcpsdk/session"
	"github.com/nugget/mcpsdk/transport"
)

// Config declares the capabilities and identity a Server advertises
// during initialize (spec.md §3, §6).
type Config struct {
	Implementation mcp.Implementation

	Resources    *mcp.ResourcesCapability
	Prompts      *mcp.PromptsCapability
	Tools        *mcp.ToolsCapability
	Logging      bool
	Completion   bool
	Experimental map[string]any

	Logger *slog.Logger
}

// Server wraps a session.Engine with dispatch to a Service and the
// server-initiated operations (sampling, roots/list, broadcast
// notifications). Grounded on
// other_examples/.../server-session.go's ServerSession — its
// NotifyProgress/Log/Ping/ListRoots/CreateMessage methods and its
// state/capabilities split between session plumbing and service
// delegation — generalized from that SDK's string-keyed Connection
// interface to this module's session.Engine.
type Server struct {
	engine  *session.Engine
	service Service
	cfg     Config
	logger  *slog.Logger

	clientID string

	mu              sync.RWMutex
	initialized     bool
	protocolVersion string
	clientInfo      mcp.Implementation
	clientCaps      mcp.ClientCapabilities
	logLevel        mcp.LoggingLevel
}

// New builds a Server over the given transport, delegating domain
// requests to svc. The transport is not connected until Start.
func New(t transport.Transport, svc Service, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("mcp_role", "server")

	s := &Server{
		engine:   session.NewEngine(t, logger),
		service:  svc,
		cfg:      cfg,
		logger:   logger,
		clientID: uuid.NewString(),
		logLevel: mcp.LogLevelInfo,
	}
	s.engine.SetRequestHandler(s.handleInboundRequest)
	return s
}

// Start connects the transport and begins serving. The session reaches
// Ready once the client completes the initialize handshake.
func (s *Server) Start(ctx context.Context) error {
	if err := s.engine.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	go s.watchEvents()
	return nil
}

// Done reports when the underlying session has shut down, whether
// because the transport closed or Close was called.
func (s *Server) Done() <-chan struct{} {
	return s.engine.Done()
}

// Close tears down the session and its transport. Idempotent.
func (s *Server) Close() error {
	s.mu.RLock()
	wasInitialized := s.initialized
	sc := s.contextLocked()
	s.mu.RUnlock()

	err := s.engine.Close()
	if wasInitialized {
		s.service.ClientDisconnected(context.Background(), sc)
	}
	return err
}

// watchEvents handles inbound notifications: completing the handshake
// on notifications/initialized, and logging everything else. Requests
// are handled separately by handleInboundRequest.
func (s *Server) watchEvents() {
	for note := range s.engine.Events() {
		if note.Method != mcp.NotificationInitialized {
			s.logger.Debug("inbound notification", "method", note.Method)
			continue
		}

		s.mu.Lock()
		s.initialized = true
		sc := s.contextLocked()
		s.mu.Unlock()

		s.engine.SetState(session.StateReady)
		s.logger.Info("client ready",
			"client_name", sc.ClientInfo.Name,
			"client_version", sc.ClientInfo.Version,
			"protocol_version", sc.ProtocolVersion,
		)
		s.service.ClientConnected(context.Background(), sc)
	}
}

func (s *Server) contextLocked() *Context {
	return &Context{
		ClientID:           s.clientID,
		ProtocolVersion:    s.protocolVersion,
		ClientInfo:         s.clientInfo,
		ClientCapabilities: s.clientCaps,
	}
}

func (s *Server) serviceContext() *Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contextLocked()
}

func (s *Server) capabilities() mcp.ServerCapabilities {
	caps := mcp.ServerCapabilities{
		Resources: s.cfg.Resources,
		Prompts:   s.cfg.Prompts,
		Tools:     s.cfg.Tools,
	}
	if s.cfg.Logging {
		caps.Logging = &struct{}{}
	}
	if s.cfg.Completion {
		caps.Completion = &struct{}{}
	}
	if len(s.cfg.Experimental) > 0 {
		caps.Experimental = s.cfg.Experimental
	}
	return caps
}

// handleInboundRequest is the session.RequestHandler for the server
// role: initialize is handled here directly (it drives the session
// state machine); everything else is translated into a Request and
// delegated to the Service (spec.md §4.4).
func (s *Server) handleInboundRequest(ctx context.Context, method string, params json.RawMessage) (result any, rpcErr *mcp.RPCError) {
	if method == mcp.MethodInitialize {
		return s.handleInitialize(params)
	}

	req, kind, err := decodeServiceRequest(method, params)
	if err != nil {
		return nil, &mcp.RPCError{Code: mcp.CodeInvalidParams, Message: err.Error()}
	}

	return s.dispatchToService(ctx, kind, req)
}

func (s *Server) handleInitialize(raw json.RawMessage) (any, *mcp.RPCError) {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return nil, &mcp.RPCError{Code: mcp.CodeInvalidRequest, Message: "initialize received more than once"}
	}
	s.mu.Unlock()

	var params mcp.InitializeParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &mcp.RPCError{Code: mcp.CodeInvalidParams, Message: err.Error()}
	}

	if !mcp.IsSupportedProtocolVersion(params.ProtocolVersion) {
		return nil, &mcp.RPCError{
			Code:    mcp.CodeInvalidParams,
			Message: fmt.Sprintf("unsupported protocol version %q", params.ProtocolVersion),
		}
	}

	s.engine.SetState(session.StateInitializing)

	s.mu.Lock()
	s.protocolVersion = params.ProtocolVersion
	s.clientInfo = params.ClientInfo
	s.clientCaps = params.Capabilities
	s.mu.Unlock()

	return &mcp.InitializeResult{
		ProtocolVersion: params.ProtocolVersion,
		Capabilities:    s.capabilities(),
		ServerInfo:      s.cfg.Implementation,
	}, nil
}

// dispatchToService calls the Service and recovers a panicking handler
// into a generic InternalError, per spec.md §4.4's "a handler that
// panics/faults causes the session to send a generic InternalError and
// log the cause."
func (s *Server) dispatchToService(ctx context.Context, kind Kind, req *Request) (result any, rpcErr *mcp.RPCError) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("service handler panicked", "panic", r, "method", req.Kind)
			rpcErr = &mcp.RPCError{Code: mcp.CodeInternalError, Message: "internal error"}
			result = nil
		}
	}()

	resp, err := s.service.HandleRequest(ctx, s.serviceContext(), req)
	if err != nil {
		return nil, &mcp.RPCError{Code: mcp.CodeInternalError, Message: err.Error()}
	}
	return resp.resultFor(kind), nil
}

// decodeServiceRequest maps a wire method name onto a typed Request.
func decodeServiceRequest(method string, raw json.RawMessage) (*Request, Kind, error) {
	unmarshalInto := func(v any) error {
		if len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, v)
	}

	switch method {
	case mcp.MethodResourcesList:
		p := &mcp.CursorParams{}
		if err := unmarshalInto(p); err != nil {
			return nil, 0, err
		}
		return &Request{Kind: KindListResources, ListResources: p}, KindListResources, nil
	case mcp.MethodResourcesRead:
		p := &mcp.ReadResourceParams{}
		if err := unmarshalInto(p); err != nil {
			return nil, 0, err
		}
		return &Request{Kind: KindReadResource, ReadResource: p}, KindReadResource, nil
	case mcp.MethodResourcesSubscribe:
		p := &mcp.SubscribeParams{}
		if err := unmarshalInto(p); err != nil {
			return nil, 0, err
		}
		return &Request{Kind: KindSubscribe, Subscribe: p}, KindSubscribe, nil
	case mcp.MethodResourcesUnsubscribe:
		p := &mcp.SubscribeParams{}
		if err := unmarshalInto(p); err != nil {
			return nil, 0, err
		}
		return &Request{Kind: KindUnsubscribe, Unsubscribe: p}, KindUnsubscribe, nil
	case mcp.MethodResourcesTemplatesList:
		return &Request{Kind: KindListResourceTemplates}, KindListResourceTemplates, nil
	case mcp.MethodPromptsList:
		p := &mcp.CursorParams{}
		if err := unmarshalInto(p); err != nil {
			return nil, 0, err
		}
		return &Request{Kind: KindListPrompts, ListPrompts: p}, KindListPrompts, nil
	case mcp.MethodPromptsGet:
		p := &mcp.GetPromptParams{}
		if err := unmarshalInto(p); err != nil {
			return nil, 0, err
		}
		return &Request{Kind: KindGetPrompt, GetPrompt: p}, KindGetPrompt, nil
	case mcp.MethodToolsList:
		p := &mcp.CursorParams{}
		if err := unmarshalInto(p); err != nil {
			return nil, 0, err
		}
		return &Request{Kind: KindListTools, ListTools: p}, KindListTools, nil
	case mcp.MethodToolsCall:
		p := &mcp.CallToolParams{}
		if err := unmarshalInto(p); err != nil {
			return nil, 0, err
		}
		return &Request{Kind: KindCallTool, CallTool: p}, KindCallTool, nil
	case mcp.MethodLoggingSetLevel:
		p := &mcp.SetLevelParams{}
		if err := unmarshalInto(p); err != nil {
			return nil, 0, err
		}
		return &Request{Kind: KindSetLogLevel, SetLogLevel: p}, KindSetLogLevel, nil
	case mcp.MethodCompletionComplete:
		p := &mcp.CompleteParams{}
		if err := unmarshalInto(p); err != nil {
			return nil, 0, err
		}
		return &Request{Kind: KindComplete, Complete: p}, KindComplete, nil
	case mcp.MethodPing:
		return &Request{Kind: KindPing, Ping: &mcp.PingParams{}}, KindPing, nil
	default:
		return &Request{
			Kind:               KindExperimental,
			ExperimentalMethod: method,
			ExperimentalParams: raw,
		}, KindExperimental, nil
	}
}

// NotifyResourcesListChanged broadcasts notifications/resources/listChanged.
func (s *Server) NotifyResourcesListChanged(ctx context.Context) error {
	caps := s.capabilities()
	if !caps.HasResourcesListChanged() {
		return mcp.NewCapabilityMissing("resources.listChanged")
	}
	return s.engine.Notify(ctx, mcp.NotificationResourcesListChanged, nil)
}

// NotifyResourceUpdated broadcasts notifications/resources/updated for uri.
func (s *Server) NotifyResourceUpdated(ctx context.Context, uri string) error {
	caps := s.capabilities()
	if !caps.HasResourcesSubscribe() {
		return mcp.NewCapabilityMissing("resources.subscribe")
	}
	return s.engine.Notify(ctx, mcp.NotificationResourcesUpdated, &mcp.ResourceUpdatedParams{URI: uri})
}

// NotifyPromptsListChanged broadcasts notifications/prompts/listChanged.
func (s *Server) NotifyPromptsListChanged(ctx context.Context) error {
	caps := s.capabilities()
	if !caps.HasPrompts() || !s.cfg.Prompts.ListChanged {
		return mcp.NewCapabilityMissing("prompts.listChanged")
	}
	return s.engine.Notify(ctx, mcp.NotificationPromptsListChanged, nil)
}

// NotifyToolsListChanged broadcasts notifications/tools/listChanged.
func (s *Server) NotifyToolsListChanged(ctx context.Context) error {
	caps := s.capabilities()
	if !caps.HasTools() || !s.cfg.Tools.ListChanged {
		return mcp.NewCapabilityMissing("tools.listChanged")
	}
	return s.engine.Notify(ctx, mcp.NotificationToolsListChanged, nil)
}

// Log sends a log message to the client, filtered against the level the
// client most recently requested via logging/setLevel.
func (s *Server) Log(ctx context.Context, params *mcp.LogMessageParams) error {
	caps := s.capabilities()
	if !caps.HasLogging() {
		return mcp.NewCapabilityMissing("logging")
	}
	s.mu.RLock()
	threshold := s.logLevel
	s.mu.RUnlock()
	if !mcp.ShouldLog(params.Level, threshold) {
		return nil
	}
	return s.engine.Notify(ctx, mcp.NotificationLoggingMessage, params)
}

// SetLogLevel records the level threshold a CallTool/Log caller uses
// after a client issues logging/setLevel; called by a Service from
// within its KindSetLogLevel handler.
func (s *Server) SetLogLevel(level mcp.LoggingLevel) {
	s.mu.Lock()
	s.logLevel = level
	s.mu.Unlock()
}

// NotifyProgress reports progress for a long-running request.
func (s *Server) NotifyProgress(ctx context.Context, params *mcp.ProgressParams) error {
	return s.engine.Notify(ctx, mcp.NotificationProgress, params)
}

// Ping sends a ping request to the client.
func (s *Server) Ping(ctx context.Context) error {
	_, err := s.engine.Request(ctx, mcp.MethodPing, &mcp.PingParams{})
	return err
}

// ListRoots asks the client to enumerate its roots. Requires the client
// to have advertised the roots capability.
func (s *Server) ListRoots(ctx context.Context) (*mcp.ListRootsResult, error) {
	clientCaps := s.clientCapabilities()
	if !clientCaps.HasRoots() {
		return nil, mcp.NewCapabilityMissing("roots")
	}
	raw, err := s.engine.Request(ctx, mcp.MethodRootsList, nil)
	if err != nil {
		return nil, err
	}
	var result mcp.ListRootsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal roots/list result: %w", err)
	}
	return &result, nil
}

// CreateMessage asks the client to sample from its LLM. Requires the
// client to have advertised the sampling capability.
func (s *Server) CreateMessage(ctx context.Context, params *mcp.CreateMessageParams) (*mcp.CreateMessageResult, error) {
	clientCaps := s.clientCapabilities()
	if !clientCaps.HasSampling() {
		return nil, mcp.NewCapabilityMissing("sampling")
	}
	raw, err := s.engine.Request(ctx, mcp.MethodSamplingCreateMessage, params)
	if err != nil {
		return nil, err
	}
	var result mcp.CreateMessageResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal sampling/createMessage result: %w", err)
	}
	return &result, nil
}

func (s *Server) clientCapabilities() mcp.ClientCapabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientCaps
}
