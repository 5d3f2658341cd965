// Package session implements the transport-agnostic engine shared by
// both MCP roles: message framing, request/response correlation, the
// connection lifecycle, and inbound dispatch. client.Client and
// server.Server each wrap an Engine and add role-specific operations.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	mcp "github.com/nugget/mcpsdk"
	"github.com/nugget/mcpsdk/transport"
)

// State is a position in the session lifecycle (spec.md §5).
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateInitializing
	StateReady
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// RequestHandler answers an inbound request from the peer. Returning a
// non-nil *mcp.RPCError sends an error response instead of result.
type RequestHandler func(ctx context.Context, method string, params json.RawMessage) (result any, rpcErr *mcp.RPCError)

// Engine is the role-agnostic message-correlation and dispatch loop
// sitting on top of a transport.Transport. Grounded on
// internal/mcp/client.go's send/Initialize shape for outbound
// correlation and on
// other_examples/.../server-session.go's ServerSession for the
// pending-request/state-machine split that lets the same machinery
// serve both a client and a server role.
type Engine struct {
	transport transport.Transport
	logger    *slog.Logger
	nextID    atomic.Int64

	stateMu sync.RWMutex
	state   State

	pending *pendingTable
	events  chan *InboundNotification

	activeMu sync.Mutex
	active   map[mcp.ID]context.CancelFunc

	handlerMu sync.RWMutex
	onRequest RequestHandler

	done    chan struct{}
	doneErr error
	once    sync.Once
}

// NewEngine creates an Engine over the given transport. The transport
// is not connected until Start.
func NewEngine(t transport.Transport, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		transport: t,
		logger:    logger,
		pending:   newPendingTable(),
		events:    newEventChannel(),
		active:    make(map[mcp.ID]context.CancelFunc),
		done:      make(chan struct{}),
	}
}

// SetRequestHandler registers the callback invoked for inbound requests
// from the peer (e.g. sampling/createMessage on a client, tools/call on
// a server). Must be called before Start.
func (e *Engine) SetRequestHandler(h RequestHandler) {
	e.handlerMu.Lock()
	e.onRequest = h
	e.handlerMu.Unlock()
}

// Events returns the channel of inbound notifications from the peer.
func (e *Engine) Events() <-chan *InboundNotification {
	return e.events
}

// State reports the engine's current lifecycle state.
func (e *Engine) State() State {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state
}

// SetState transitions the engine to s. Role layers drive the
// Initializing/Ready transitions once their handshake completes.
func (e *Engine) SetState(s State) {
	e.stateMu.Lock()
	e.state = s
	e.stateMu.Unlock()
}

// Start connects the transport and begins the background read loop.
func (e *Engine) Start(ctx context.Context) error {
	e.SetState(StateConnecting)
	if err := e.transport.Connect(ctx); err != nil {
		e.SetState(StateDisconnected)
		return fmt.Errorf("connect transport: %w", err)
	}
	go e.readLoop()
	return nil
}

// readLoop pulls envelopes off the transport until it errors, routing
// each to the pending table, the request handler, or the events channel.
func (e *Engine) readLoop() {
	ctx := context.Background()
	for {
		env, err := e.transport.Receive(ctx)
		if err != nil {
			e.shutdown(err)
			return
		}

		switch env.Kind() {
		case mcp.KindResponse:
			if !e.pending.complete(env.Response.ID, env.Response) {
				e.logger.Debug("response for unknown or expired request", "id", env.Response.ID.String())
			}
		case mcp.KindNotification:
			if env.Notification.Method == mcp.NotificationCancelled {
				e.handleCancelled(env.Notification.Params)
			}
			publish(e.events, &InboundNotification{
				Method: env.Notification.Method,
				Params: env.Notification.Params,
			}, e.logger)
		case mcp.KindRequest:
			go e.dispatchRequest(env.Request)
		default:
			e.logger.Warn("dropping empty envelope")
		}
	}
}

// dispatchRequest answers a peer-initiated request using the registered
// RequestHandler, sending the result or error back over the transport.
// The handler's context is cancelled if the peer later sends
// notifications/cancelled for this request's id (spec.md §5): a handler
// that honors ctx can abandon the work early, and whatever it returns
// is discarded rather than sent, since the peer already dropped the
// pending entry for the id it gave up on.
func (e *Engine) dispatchRequest(req *mcp.Request) {
	ctx, cancel := context.WithCancel(context.Background())
	e.registerActive(req.ID, cancel)
	defer e.unregisterActive(req.ID)
	defer cancel()

	e.handlerMu.RLock()
	handler := e.onRequest
	e.handlerMu.RUnlock()

	if handler == nil {
		e.replyError(req.ID, &mcp.RPCError{
			Code:    mcp.CodeMethodNotFound,
			Message: fmt.Sprintf("method not supported: %s", req.Method),
		})
		return
	}

	result, rpcErr := e.invokeHandler(ctx, handler, req)
	if ctx.Err() != nil {
		e.logger.Debug("discarding response to cancelled request", "method", req.Method, "id", req.ID.String())
		return
	}
	if rpcErr != nil {
		e.replyError(req.ID, rpcErr)
		return
	}

	resp, err := mcp.NewResultResponse(req.ID, result)
	if err != nil {
		e.replyError(req.ID, &mcp.RPCError{Code: mcp.CodeInternalError, Message: err.Error()})
		return
	}
	if err := e.transport.Send(context.Background(), &mcp.Envelope{Response: resp}); err != nil {
		e.logger.Warn("send response failed", "method", req.Method, "error", err)
	}
}

// invokeHandler calls handler, recovering a panic into a generic
// InternalError so a faulting client/server RequestHandler (e.g. a
// caller-supplied SamplingHandler/RootsHandler run inline on this
// goroutine) cannot take down the process.
func (e *Engine) invokeHandler(ctx context.Context, handler RequestHandler, req *mcp.Request) (result any, rpcErr *mcp.RPCError) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("request handler panicked", "panic", r, "method", req.Method)
			rpcErr = &mcp.RPCError{Code: mcp.CodeInternalError, Message: "internal error"}
			result = nil
		}
	}()
	return handler(ctx, req.Method, req.Params)
}

func (e *Engine) registerActive(id mcp.ID, cancel context.CancelFunc) {
	e.activeMu.Lock()
	e.active[id] = cancel
	e.activeMu.Unlock()
}

func (e *Engine) unregisterActive(id mcp.ID) {
	e.activeMu.Lock()
	delete(e.active, id)
	e.activeMu.Unlock()
}

// handleCancelled cancels the context of a still-running inbound
// request handler named by a notifications/cancelled payload, if any.
func (e *Engine) handleCancelled(raw json.RawMessage) {
	var params mcp.CancelledParams
	if err := json.Unmarshal(raw, &params); err != nil {
		e.logger.Debug("malformed cancelled notification", "error", err)
		return
	}
	e.activeMu.Lock()
	cancel, ok := e.active[params.RequestID]
	e.activeMu.Unlock()
	if ok {
		cancel()
	}
}

func (e *Engine) replyError(id mcp.ID, rpcErr *mcp.RPCError) {
	resp := mcp.NewErrorResponse(id, rpcErr)
	if err := e.transport.Send(context.Background(), &mcp.Envelope{Response: resp}); err != nil {
		e.logger.Warn("send error response failed", "error", err)
	}
}

// errAborted is the synthetic error shutdown hands every pending caller;
// Request reports it as mcp.ErrDisconnected.
var errAborted = &mcp.RPCError{Code: mcp.CodeInternalError, Message: "session disconnected"}

// shutdown marks the engine disconnected and aborts every pending
// request; their callers get mcp.ErrDisconnected wrapping the error that
// ended the read loop.
func (e *Engine) shutdown(err error) {
	e.once.Do(func() {
		e.doneErr = err
		e.SetState(StateDisconnected)
		e.pending.abortAll(errAborted)
		close(e.done)
	})
}

// NextID allocates the next outbound request id.
func (e *Engine) NextID() mcp.ID {
	return mcp.NewID(e.nextID.Add(1))
}

// Request sends a JSON-RPC request and blocks until its response
// arrives, ctx is done, or the session disconnects.
func (e *Engine) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := e.NextID()
	req, err := mcp.NewRequest(id, method, params)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	ch := e.pending.register(id)

	if err := e.transport.Send(ctx, &mcp.Envelope{Request: req}); err != nil {
		e.pending.remove(id)
		return nil, fmt.Errorf("send request %s: %w", method, err)
	}

	select {
	case resp := <-ch:
		if resp.Error == errAborted {
			return nil, e.disconnectError()
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		e.pending.remove(id)
		e.notifyCancelled(id, ctx.Err())
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, mcp.ErrTimeout
		}
		return nil, mcp.ErrCanceled
	case <-e.done:
		return nil, e.disconnectError()
	}
}

// notifyCancelled best-effort informs the peer that a request this side
// gave up on need not be answered (spec.md §5). The peer is not obliged
// to honor it; the caller has already been resolved either way.
func (e *Engine) notifyCancelled(id mcp.ID, reason error) {
	go func() {
		_ = e.Notify(context.Background(), mcp.NotificationCancelled, &mcp.CancelledParams{
			RequestID: id,
			Reason:    reason.Error(),
		})
	}()
}

// Notify sends a JSON-RPC notification; it never waits for a reply.
func (e *Engine) Notify(ctx context.Context, method string, params any) error {
	note, err := mcp.NewNotification(method, params)
	if err != nil {
		return fmt.Errorf("build notification: %w", err)
	}
	if err := e.transport.Send(ctx, &mcp.Envelope{Notification: note}); err != nil {
		return fmt.Errorf("send notification %s: %w", method, err)
	}
	return nil
}

func (e *Engine) disconnectError() error {
	if e.doneErr != nil {
		return fmt.Errorf("%w: %v", mcp.ErrDisconnected, e.doneErr)
	}
	return mcp.ErrDisconnected
}

// Close stops the read loop and disconnects the transport. Idempotent.
func (e *Engine) Close() error {
	e.SetState(StateClosing)
	err := e.transport.Disconnect()
	e.shutdown(mcp.ErrDisconnected)
	return err
}

// Done returns a channel closed when the engine has disconnected.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// PendingCount reports the number of in-flight outbound requests, used
// by tests to assert cleanup.
func (e *Engine) PendingCount() int {
	return e.pending.len()
}
