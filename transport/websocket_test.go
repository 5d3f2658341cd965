package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	mcp "github.com/nugget/mcpsdk"
)

// newEchoWebSocketServer starts an httptest.Server that upgrades every
// connection and echoes back each text frame it receives, unchanged.
func newEchoWebSocketServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(msgType, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketTransportRoundTrip(t *testing.T) {
	srv := newEchoWebSocketServer(t)
	tr := NewWebSocketTransport(WebSocketConfig{URL: wsURL(srv)})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Disconnect()

	note, err := mcp.NewNotification("notifications/progress", map[string]any{"progress": 1.0})
	if err != nil {
		t.Fatalf("NewNotification: %v", err)
	}
	if err := tr.Send(ctx, &mcp.Envelope{Notification: note}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	env, err := tr.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if env.Notification == nil || env.Notification.Method != "notifications/progress" {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	if !tr.IsConnected() {
		t.Fatal("expected transport to report connected")
	}
}

func TestWebSocketTransportDisconnect(t *testing.T) {
	srv := newEchoWebSocketServer(t)
	tr := NewWebSocketTransport(WebSocketConfig{URL: wsURL(srv)})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := tr.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if tr.IsConnected() {
		t.Fatal("expected transport to report disconnected")
	}
}

func TestWebSocketTransportConnectFailsOnBadURL(t *testing.T) {
	tr := NewWebSocketTransport(WebSocketConfig{URL: "ws://127.0.0.1:1/does-not-exist"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := tr.Connect(ctx); err == nil {
		t.Fatal("expected an error dialing an unreachable websocket endpoint")
	}
}

func TestWebSocketTransportRejectsBinaryFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.BinaryMessage, []byte("binary junk"))
		note, _ := mcp.NewNotification("notifications/progress", nil)
		data, _ := marshalEnvelope(&mcp.Envelope{Notification: note})
		conn.WriteMessage(websocket.TextMessage, data)
		time.Sleep(time.Second)
	}))
	t.Cleanup(srv.Close)

	tr := NewWebSocketTransport(WebSocketConfig{URL: wsURL(srv)})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Disconnect()

	env, err := tr.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if env.Notification == nil || env.Notification.Method != "notifications/progress" {
		t.Fatalf("expected the binary frame to be skipped and the text frame delivered, got %+v", env)
	}
}
