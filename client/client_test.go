package client

import (
	"context"
	"errors"
	"testing"
	"time"

	mcp "github.com/nugget/mcpsdk"
)

// fakeTransport is an in-memory transport.Transport, mirroring the one
// in package session's tests.
type fakeTransport struct {
	outbox chan *mcp.Envelope
	inbox  chan *mcp.Envelope
	closed chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		outbox: make(chan *mcp.Envelope, 16),
		inbox:  make(chan *mcp.Envelope, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) Connect(ctx context.Context) error { return nil }

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

// serveInitialize answers the first outbound envelope on ft as an
// initialize request, advertising serverCaps, then drains the
// notifications/initialized notification that follows.
func serveInitialize(t *testing.T, ft *fakeTransport, serverCaps mcp.ServerCapabilities) {
	t.Helper()

	var env *mcp.Envelope
	select {
	case env = <-ft.outbox:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initialize request")
	}
	if env.Request == nil || env.Request.Method != mcp.MethodInitialize {
		t.Fatalf("expected initialize request, got %+v", env)
	}

	result := &mcp.InitializeResult{
		ProtocolVersion: mcp.LatestProtocolVersion,
		Capabilities:    serverCaps,
		ServerInfo:      mcp.Implementation{Name: "test-server", Version: "9.9.9"},
	}
	resp, err := mcp.NewResultResponse(env.Request.ID, result)
	if err != nil {
		t.Fatalf("NewResultResponse: %v", err)
	}
	ft.inbox <- &mcp.Envelope{Response: resp}

	select {
	case env = <-ft.outbox:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notifications/initialized")
	}
	if env.Notification == nil || env.Notification.Method != mcp.NotificationInitialized {
		t.Fatalf("expected notifications/initialized, got %+v", env)
	}
}

func TestNewRequiresExactlyOneTransport(t *testing.T) {
	_, err := New(WithImplementation("test", "0.0.1"))
	if err == nil {
		t.Fatal("expected error with no transport option set")
	}

	ft := newFakeTransport()
	_, err = New(
		WithCustomTransport(ft),
		WithHTTPURL("http://example.com"),
	)
	if err == nil {
		t.Fatal("expected error with two transport options set")
	}
}

func TestClientConnectSucceeds(t *testing.T) {
	ft := newFakeTransport()
	c, err := New(WithCustomTransport(ft), WithImplementation("test-client", "1.0.0"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background()) }()

	serveInitialize(t, ft, mcp.ServerCapabilities{Tools: &mcp.ToolsCapability{}})

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Connect: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Connect")
	}

	if c.ServerInfo().Name != "test-server" {
		t.Fatalf("unexpected server info: %+v", c.ServerInfo())
	}
	if !c.ServerCapabilities().HasTools() {
		t.Fatal("expected tools capability recorded")
	}
}

func TestClientCallToolRequiresCapability(t *testing.T) {
	ft := newFakeTransport()
	c, err := New(WithCustomTransport(ft), WithImplementation("test-client", "1.0.0"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background()) }()
	serveInitialize(t, ft, mcp.ServerCapabilities{}) // no tools capability
	if err := <-done; err != nil {
		t.Fatalf("Connect: %v", err)
	}

	_, err = c.CallTool(context.Background(), "anything", nil)
	var capErr *mcp.CapabilityMissingError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected CapabilityMissingError, got %v", err)
	}
}

func TestClientCallToolRoundTrip(t *testing.T) {
	ft := newFakeTransport()
	c, err := New(WithCustomTransport(ft), WithImplementation("test-client", "1.0.0"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background()) }()
	serveInitialize(t, ft, mcp.ServerCapabilities{Tools: &mcp.ToolsCapability{}})
	if err := <-done; err != nil {
		t.Fatalf("Connect: %v", err)
	}

	resultCh := make(chan *mcp.CallToolResult, 1)
	errCh := make(chan error, 1)
	go func() {
		result, err := c.CallTool(context.Background(), "echo", map[string]any{"text": "hi"})
		resultCh <- result
		errCh <- err
	}()

	var env *mcp.Envelope
	select {
	case env = <-ft.outbox:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for tools/call request")
	}
	if env.Request == nil || env.Request.Method != mcp.MethodToolsCall {
		t.Fatalf("unexpected outbound envelope: %+v", env)
	}

	resp, err := mcp.NewResultResponse(env.Request.ID, &mcp.CallToolResult{
		Content: []mcp.ContentBlock{{Type: "text", Text: "hi back"}},
	})
	if err != nil {
		t.Fatalf("NewResultResponse: %v", err)
	}
	ft.inbox <- &mcp.Envelope{Response: resp}

	if err := <-errCh; err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	result := <-resultCh
	if len(result.Content) != 1 || result.Content[0].Text != "hi back" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestClientHandlesInboundSamplingRequest(t *testing.T) {
	ft := newFakeTransport()
	handlerCalled := make(chan *mcp.CreateMessageParams, 1)
	c, err := New(
		WithCustomTransport(ft),
		WithImplementation("test-client", "1.0.0"),
		WithSampling(true),
		WithSamplingHandler(func(ctx context.Context, params *mcp.CreateMessageParams) (*mcp.CreateMessageResult, error) {
			handlerCalled <- params
			return &mcp.CreateMessageResult{
				Role:    mcp.SamplingRoleAssistant,
				Content: mcp.ContentBlock{Type: "text", Text: "sampled"},
				Model:   "test-model",
			}, nil
		}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background()) }()
	serveInitialize(t, ft, mcp.ServerCapabilities{})
	if err := <-done; err != nil {
		t.Fatalf("Connect: %v", err)
	}

	req, err := mcp.NewRequest(mcp.NewID(99), mcp.MethodSamplingCreateMessage, &mcp.CreateMessageParams{
		Messages:  []mcp.SamplingMessage{{Role: mcp.SamplingRoleUser, Content: mcp.ContentBlock{Type: "text", Text: "hi"}}},
		MaxTokens: 100,
	})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	ft.inbox <- &mcp.Envelope{Request: req}

	select {
	case <-handlerCalled:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sampling handler to be invoked")
	}

	select {
	case env := <-ft.outbox:
		if env.Response == nil || env.Response.Error != nil {
			t.Fatalf("unexpected response: %+v", env)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sampling response")
	}
}

func TestClientPingRoundTrip(t *testing.T) {
	ft := newFakeTransport()
	c, err := New(WithCustomTransport(ft), WithImplementation("test-client", "1.0.0"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background()) }()
	serveInitialize(t, ft, mcp.ServerCapabilities{})
	if err := <-done; err != nil {
		t.Fatalf("Connect: %v", err)
	}

	pingErr := make(chan error, 1)
	go func() { pingErr <- c.Ping(context.Background()) }()

	var env *mcp.Envelope
	select {
	case env = <-ft.outbox:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ping request")
	}
	resp, err := mcp.NewResultResponse(env.Request.ID, &mcp.PingParams{})
	if err != nil {
		t.Fatalf("NewResultResponse: %v", err)
	}
	ft.inbox <- &mcp.Envelope{Response: resp}

	if err := <-pingErr; err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
