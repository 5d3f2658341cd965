package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nugget/mcpsdk"
)

// defaultPingInterval is the idle timer WebSocket connections use for
// liveness, per spec.md §6 ("default 30-second idle timer").
const defaultPingInterval = 30 * time.Second

// WebSocketConfig configures a WebSocket MCP transport (spec.md §4.1, §6).
type WebSocketConfig struct {
	// URL is the ws:// or wss:// MCP server endpoint.
	URL string

	// Headers are additional HTTP headers sent with the upgrade request
	// (e.g. Authorization).
	Headers http.Header

	// PingInterval overrides the default 30-second idle ping timer.
	PingInterval time.Duration

	// Logger is the structured logger for transport diagnostics.
	Logger *slog.Logger
}

// WebSocketTransport carries one JSON-RPC envelope per text frame.
// Binary frames are rejected (spec.md §6). Grounded on
// internal/homeassistant/websocket.go's dial/readLoop shape, generalized
// from that package's bespoke wsMessage envelope to MCP's JSON-RPC
// envelope. Every inbound envelope is pushed onto inbox; correlating
// responses to requests by id is left to session.Engine.
type WebSocketTransport struct {
	url          string
	headers      http.Header
	pingInterval time.Duration
	logger       *slog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	inbox     chan *mcp.Envelope
	readerErr chan error

	pingCancel context.CancelFunc
}

// NewWebSocketTransport creates a WebSocket transport for the given
// config. The connection is not dialed until Connect.
func NewWebSocketTransport(cfg WebSocketConfig) *WebSocketTransport {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.PingInterval
	if interval <= 0 {
		interval = defaultPingInterval
	}
	return &WebSocketTransport{
		url:          cfg.URL,
		headers:      cfg.Headers,
		pingInterval: interval,
		logger:       logger,
		inbox:        make(chan *mcp.Envelope, 64),
		readerErr:    make(chan error, 1),
	}
}

// Connect dials the WebSocket endpoint and starts the background read
// loop and idle-ping timer.
func (t *WebSocketTransport) Connect(ctx context.Context) error {
	if _, err := url.Parse(t.url); err != nil {
		return fmt.Errorf("parse websocket url: %w", err)
	}

	dialer := websocket.Dialer{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
	}

	conn, _, err := dialer.DialContext(ctx, t.url, t.headers)
	if err != nil {
		return fmt.Errorf("dial websocket %s: %w", t.url, err)
	}
	conn.SetReadLimit(100 << 20) // 100 MiB max message size

	t.connMu.Lock()
	t.conn = conn
	t.connMu.Unlock()

	go t.readLoop(conn)
	t.startPingTimer(conn)

	t.logger.Info("websocket connected", "url", t.url)
	return nil
}

// readLoop reads text frames, decodes each as one JSON-RPC envelope, and
// pushes it onto inbox. Binary frames are rejected per spec.md §6.
func (t *WebSocketTransport) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Info("websocket closed normally")
				t.readerErr <- io.EOF
				return
			}
			t.readerErr <- fmt.Errorf("websocket read: %w", err)
			return
		}

		if msgType == websocket.BinaryMessage {
			t.logger.Warn("rejecting binary websocket frame")
			continue
		}

		env, err := mcp.DecodeEnvelope(data)
		if err != nil {
			t.logger.Debug("skipping undecodable websocket frame", "error", err)
			continue
		}

		select {
		case t.inbox <- env:
		default:
			t.logger.Warn("inbox full, dropping inbound MCP message")
		}
	}
}

// startPingTimer sends a WebSocket ping every pingInterval to detect a
// dead peer, per spec.md §6's default 30-second idle timer.
func (t *WebSocketTransport) startPingTimer(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	t.pingCancel = cancel

	go func() {
		ticker := time.NewTicker(t.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.connMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				t.connMu.Unlock()
				if err != nil {
					t.logger.Warn("websocket ping failed", "error", err)
					return
				}
			}
		}
	}()
}

// Send writes one envelope as a single text frame.
func (t *WebSocketTransport) Send(ctx context.Context, env *mcp.Envelope) error {
	data, err := marshalEnvelope(env)
	if err != nil {
		return err
	}

	t.connMu.Lock()
	conn := t.conn
	t.connMu.Unlock()

	if conn == nil {
		return fmt.Errorf("websocket transport: not connected")
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}

	t.connMu.Lock()
	defer t.connMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

// Receive yields the next inbound envelope.
func (t *WebSocketTransport) Receive(ctx context.Context) (*mcp.Envelope, error) {
	select {
	case env := <-t.inbox:
		return env, nil
	case err := <-t.readerErr:
		select {
		case env := <-t.inbox:
			t.readerErr <- err
			return env, nil
		default:
		}
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Disconnect closes the WebSocket connection. Idempotent.
func (t *WebSocketTransport) Disconnect() error {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if t.pingCancel != nil {
		t.pingCancel()
		t.pingCancel = nil
	}
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// IsConnected reports best-effort liveness.
func (t *WebSocketTransport) IsConnected() bool {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	return t.conn != nil
}
