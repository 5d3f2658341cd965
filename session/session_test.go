package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mcp "github.com/nugget/mcpsdk"
)

// fakeTransport is an in-memory transport.Transport used to drive the
// Engine without any real I/O, in the style of the teacher's own
// transport fakes in internal/mcp/client_test.go.
type fakeTransport struct {
	outbox  chan *mcp.Envelope // what Send put there
	inbox   chan *mcp.Envelope // what Receive will hand back
	closed  chan struct{}
	connErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		outbox: make(chan *mcp.Envelope, 16),
		inbox:  make(chan *mcp.Envelope, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) Connect(ctx context.Context) error { return f.connErr }

func (f *fakeTransport) Send(ctx context.Context, env *mcp.Envelope) error {
	select {
	case f.outbox <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeTransport) Receive(ctx context.Context) (*mcp.Envelope, error) {
	select {
	case env, ok := <-f.inbox:
		if !ok {
			return nil, errors.New("fake transport closed")
		}
		return env, nil
	case <-f.closed:
		return nil, errors.New("fake transport closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeTransport) Disconnect() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	select {
	case <-f.closed:
		return false
	default:
		return true
	}
}

func TestEngineRequestReceivesResponse(t *testing.T) {
	ft := newFakeTransport()
	e := NewEngine(ft, nil)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Close()

	done := make(chan struct{})
	var result json.RawMessage
	var reqErr error
	go func() {
		result, reqErr = e.Request(context.Background(), "ping", nil)
		close(done)
	}()

	var sentReq *mcp.Envelope
	select {
	case sentReq = <-ft.outbox:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outbound request")
	}
	if sentReq.Request == nil || sentReq.Request.Method != "ping" {
		t.Fatalf("unexpected outbound envelope: %+v", sentReq)
	}

	resp, err := mcp.NewResultResponse(sentReq.Request.ID, map[string]string{"ok": "yes"})
	if err != nil {
		t.Fatalf("NewResultResponse: %v", err)
	}
	ft.inbox <- &mcp.Envelope{Response: resp}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Request to return")
	}

	if reqErr != nil {
		t.Fatalf("Request returned error: %v", reqErr)
	}
	if string(result) != `{"ok":"yes"}` {
		t.Fatalf("unexpected result: %s", result)
	}
}

func TestEngineRequestPropagatesRPCError(t *testing.T) {
	ft := newFakeTransport()
	e := NewEngine(ft, nil)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Close()

	go func() {
		sentReq := <-ft.outbox
		errResp := mcp.NewErrorResponse(sentReq.Request.ID, &mcp.RPCError{
			Code:    mcp.CodeMethodNotFound,
			Message: "no such method",
		})
		ft.inbox <- &mcp.Envelope{Response: errResp}
	}()

	_, err := e.Request(context.Background(), "nonexistent", nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	var rpcErr *mcp.RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *mcp.RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != mcp.CodeMethodNotFound {
		t.Fatalf("unexpected code: %d", rpcErr.Code)
	}
}

func TestEngineRequestContextCancellation(t *testing.T) {
	ft := newFakeTransport()
	e := NewEngine(ft, nil)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := e.Request(ctx, "slow", nil)
		done <- err
	}()

	<-ft.outbox // drain so Send doesn't block
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, mcp.ErrCanceled) {
			t.Fatalf("expected mcp.ErrCanceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cancellation to unblock Request")
	}

	if n := e.PendingCount(); n != 0 {
		t.Fatalf("expected pending table to be cleaned up, got %d entries", n)
	}
}

func TestEngineNotifyDoesNotBlock(t *testing.T) {
	ft := newFakeTransport()
	e := NewEngine(ft, nil)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Close()

	if err := e.Notify(context.Background(), "notifications/initialized", nil); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	env := <-ft.outbox
	if env.Notification == nil || env.Notification.Method != "notifications/initialized" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestEngineDispatchesInboundRequest(t *testing.T) {
	ft := newFakeTransport()
	e := NewEngine(ft, nil)
	e.SetRequestHandler(func(ctx context.Context, method string, params json.RawMessage) (any, *mcp.RPCError) {
		if method != "roots/list" {
			return nil, &mcp.RPCError{Code: mcp.CodeMethodNotFound, Message: method}
		}
		return map[string]any{"roots": []any{}}, nil
	})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Close()

	req, err := mcp.NewRequest(mcp.NewID(1), "roots/list", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	ft.inbox <- &mcp.Envelope{Request: req}

	select {
	case env := <-ft.outbox:
		if env.Response == nil {
			t.Fatalf("expected a response envelope, got %+v", env)
		}
		if env.Response.Error != nil {
			t.Fatalf("unexpected error response: %v", env.Response.Error)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatched response")
	}
}

func TestEngineEventsDeliversNotifications(t *testing.T) {
	ft := newFakeTransport()
	e := NewEngine(ft, nil)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Close()

	note, err := mcp.NewNotification("notifications/progress", map[string]any{"progress": 1})
	if err != nil {
		t.Fatalf("NewNotification: %v", err)
	}
	ft.inbox <- &mcp.Envelope{Notification: note}

	select {
	case got := <-e.Events():
		if got.Method != "notifications/progress" {
			t.Fatalf("unexpected method: %s", got.Method)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEngineCloseAbortsPending(t *testing.T) {
	ft := newFakeTransport()
	e := NewEngine(ft, nil)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := e.Request(context.Background(), "long-poll-forever", nil)
		done <- err
	}()
	<-ft.outbox

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Request to abort")
	}

	if e.State() != StateDisconnected {
		t.Fatalf("expected StateDisconnected, got %s", e.State())
	}
}
