package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/mcpsdk"
	"github.com/nugget/mcpsdk/internal/httpkit"
)

// HTTPConfig configures a streamable-HTTP MCP transport: a POST per
// request/notification, plus a long-poll GET for server-originated
// messages (spec.md §4.1, §6).
type HTTPConfig struct {
	// URL is the MCP server endpoint.
	URL string

	// Headers are additional HTTP headers sent with every request
	// (e.g. Authorization).
	Headers map[string]string

	// Logger is the structured logger for transport diagnostics.
	Logger *slog.Logger
}

// HTTPTransport communicates with an MCP server over streamable HTTP.
// Each JSON-RPC request is sent as an HTTP POST and its response comes
// back in the POST's response body; notifications POST and expect 202.
// A background long-poll GET loop delivers server-originated requests
// and notifications. Grounded on internal/mcp/http.go for the POST
// send/notify halves nearly verbatim; the long-poll Receive loop is new,
// modeled after internal/homeassistant/websocket.go's readLoop shape but
// over repeated GETs instead of a persistent socket.
type HTTPTransport struct {
	url        string
	headers    map[string]string
	httpClient *http.Client // used for POST send/notify, has a normal timeout
	pollClient *http.Client // used for the long-poll GET, timeout disabled
	logger     *slog.Logger

	mu        sync.RWMutex
	sessionID string // Mcp-Session header for session affinity
	closed    bool

	inbox     chan *mcp.Envelope
	pollErr   chan error
	cancelPoll context.CancelFunc
}

// NewHTTPTransport creates an HTTP transport for the given config. The
// underlying HTTP client is constructed via httpkit.
func NewHTTPTransport(cfg HTTPConfig) *HTTPTransport {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPTransport{
		url:     cfg.URL,
		headers: cfg.Headers,
		httpClient: httpkit.NewClient(
			httpkit.WithLogger(logger),
		),
		pollClient: httpkit.NewClient(
			httpkit.WithLogger(logger),
			httpkit.WithTimeout(0), // the long-poll GET blocks for a long time
		),
		logger:    logger,
		sessionID: uuid.NewString(),
		inbox:     make(chan *mcp.Envelope, 64),
		pollErr:   make(chan error, 1),
	}
}

// Connect starts the background long-poll loop that delivers
// server-originated messages.
func (t *HTTPTransport) Connect(ctx context.Context) error {
	pollCtx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	t.cancelPoll = cancel
	t.mu.Unlock()

	go t.pollLoop(pollCtx)
	return nil
}

// pollLoop repeatedly issues a long-poll GET and decodes whatever
// envelopes it returns (one JSON array of envelopes, or a single
// envelope) onto inbox.
func (t *HTTPTransport) pollLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
		if err != nil {
			t.pollErr <- fmt.Errorf("build long-poll request: %w", err)
			return
		}
		t.applyHeaders(req)

		resp, err := t.pollClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.logger.Debug("long-poll GET failed, retrying", "error", err)
			time.Sleep(time.Second)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			httpkit.DrainAndClose(resp.Body, 1<<20)
			time.Sleep(time.Second)
			continue
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		httpkit.DrainAndClose(resp.Body, 1<<20)
		if err != nil {
			t.logger.Debug("read long-poll body failed", "error", err)
			continue
		}

		if len(body) == 0 {
			continue
		}

		for _, raw := range splitEnvelopes(body) {
			env, err := mcp.DecodeEnvelope(raw)
			if err != nil {
				t.logger.Debug("skipping undecodable long-poll message", "error", err)
				continue
			}
			select {
			case t.inbox <- env:
			case <-ctx.Done():
				return
			}
		}
	}
}

// splitEnvelopes accepts either a single JSON object or a JSON array of
// objects, per MCP's batch framing (spec.md §3).
func splitEnvelopes(body []byte) [][]byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] != '[' {
		return [][]byte{trimmed}
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil
	}
	out := make([][]byte, len(raws))
	for i, r := range raws {
		out[i] = r
	}
	return out
}

// Send sends one envelope as an HTTP POST. Requests receive their
// response in the POST body; notifications expect 202 Accepted.
func (t *HTTPTransport) Send(ctx context.Context, env *mcp.Envelope) error {
	data, err := marshalEnvelope(env)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	t.applyHeaders(httpReq)

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("HTTP request to %s: %w", t.url, err)
	}
	defer httpkit.DrainAndClose(httpResp.Body, 1<<20)

	if sid := httpResp.Header.Get("Mcp-Session"); sid != "" {
		t.mu.Lock()
		t.sessionID = sid
		t.mu.Unlock()
	}

	if env.Kind() == mcp.KindNotification {
		if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusAccepted {
			errBody := httpkit.ReadErrorBody(httpResp.Body, 1<<20)
			return fmt.Errorf("MCP server returned %d for notification: %s", httpResp.StatusCode, errBody)
		}
		return nil
	}

	if httpResp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(httpResp.Body, 1<<20)
		return fmt.Errorf("MCP server returned %d: %s", httpResp.StatusCode, errBody)
	}

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	respEnv, err := mcp.DecodeEnvelope(respBody)
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if respEnv.Kind() != mcp.KindResponse {
		return fmt.Errorf("expected a response envelope, got kind %d", respEnv.Kind())
	}

	select {
	case t.inbox <- respEnv:
	default:
		t.logger.Warn("inbox full, dropping HTTP response envelope")
	}
	return nil
}

func (t *HTTPTransport) applyHeaders(req *http.Request) {
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	t.mu.RLock()
	sid := t.sessionID
	t.mu.RUnlock()
	if sid != "" {
		req.Header.Set("Mcp-Session", sid)
	}
}

// Receive yields the next inbound envelope, whether it arrived as a POST
// response or via the long-poll GET.
func (t *HTTPTransport) Receive(ctx context.Context) (*mcp.Envelope, error) {
	select {
	case env := <-t.inbox:
		return env, nil
	case err := <-t.pollErr:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Disconnect stops the long-poll loop. Idempotent.
func (t *HTTPTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.cancelPoll != nil {
		t.cancelPoll()
	}
	return nil
}

// IsConnected reports whether the long-poll loop has been started and
// not yet stopped.
func (t *HTTPTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cancelPoll != nil && !t.closed
}
