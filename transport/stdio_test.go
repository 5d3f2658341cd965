package transport

import (
	"context"
	"testing"
	"time"

	mcp "github.com/nugget/mcpsdk"
)

func TestStdioTransportRoundTrip(t *testing.T) {
	// cat echoes each line of stdin back on stdout, so a sent envelope
	// bounces back unchanged — enough to exercise the framing without a
	// real MCP subprocess.
	tr := NewStdioTransport(StdioConfig{Command: "cat"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Disconnect()

	req, err := mcp.NewRequest(mcp.NewID(1), "ping", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if err := tr.Send(ctx, &mcp.Envelope{Request: req}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	env, err := tr.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if env.Request == nil || env.Request.Method != "ping" {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	if !tr.IsConnected() {
		t.Fatal("expected transport to report connected")
	}
}

func TestStdioTransportDisconnectStopsProcess(t *testing.T) {
	tr := NewStdioTransport(StdioConfig{Command: "cat"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := tr.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if tr.IsConnected() {
		t.Fatal("expected transport to report disconnected after Disconnect")
	}
}

func TestStdioTransportReceiveReportsProcessExit(t *testing.T) {
	tr := NewStdioTransport(StdioConfig{Command: "true"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Disconnect()

	_, err := tr.Receive(ctx)
	if err == nil {
		t.Fatal("expected an error once the subprocess exits without sending data")
	}
}

func TestStdioTransportConnectIsIdempotent(t *testing.T) {
	tr := NewStdioTransport(StdioConfig{Command: "cat"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("first Connect: %v", err)
	}
	defer tr.Disconnect()

	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("second Connect should be a no-op, got: %v", err)
	}
}
