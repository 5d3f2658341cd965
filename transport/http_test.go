package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mcp "github.com/nugget/mcpsdk"
)

func TestHTTPTransportSendRequestReceivesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			env, err := mcp.DecodeEnvelope(body)
			if err != nil || env.Request == nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			resp, err := mcp.NewResultResponse(env.Request.ID, map[string]string{"pong": "yes"})
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)
		}
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{URL: srv.URL})
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
	if env.Response == nil || env.Response.ID.String() != "1" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestHTTPTransportSendNotificationExpects202(t *testing.T) {
	received := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		received <- struct{}{}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{URL: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Disconnect()

	note, err := mcp.NewNotification("notifications/initialized", nil)
	if err != nil {
		t.Fatalf("NewNotification: %v", err)
	}
	if err := tr.Send(ctx, &mcp.Envelope{Notification: note}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to receive notification")
	}
}

func TestHTTPTransportLongPollDeliversServerInitiatedMessage(t *testing.T) {
	polled := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		if polled {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		polled = true
		note, _ := mcp.NewNotification("notifications/progress", map[string]any{"progress": 1.0})
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(note)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{URL: srv.URL})
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
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestHTTPTransportSessionAffinityHeaderRoundTrips(t *testing.T) {
	var gotSessionID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		gotSessionID = r.Header.Get("Mcp-Session")
		w.Header().Set("Mcp-Session", "server-assigned-id")
		body, _ := io.ReadAll(r.Body)
		env, _ := mcp.DecodeEnvelope(body)
		resp, _ := mcp.NewResultResponse(env.Request.ID, nil)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{URL: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Disconnect()

	req, _ := mcp.NewRequest(mcp.NewID(1), "ping", nil)
	if err := tr.Send(ctx, &mcp.Envelope{Request: req}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotSessionID == "" {
		t.Fatal("expected a client-generated Mcp-Session header on the first request")
	}

	req2, _ := mcp.NewRequest(mcp.NewID(2), "ping", nil)
	if err := tr.Send(ctx, &mcp.Envelope{Request: req2}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotSessionID != "server-assigned-id" {
		t.Fatalf("expected second request to carry the server-assigned session id, got %q", gotSessionID)
	}
}
