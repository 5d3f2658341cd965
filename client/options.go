package client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mcp "github.com/nugget/mcpsdk"
	"github.com/nugget/mcpsdk/internal/buildinfo"
	"github.com/nugget/mcpsdk/transport"
)

// SamplingHandler answers a server-originated sampling/createMessage
// request (spec.md §4.3). Installed via WithSamplingHandler.
type SamplingHandler func(ctx context.Context, params *mcp.CreateMessageParams) (*mcp.CreateMessageResult, error)

// RootsHandler answers a server-originated roots/list request
// (spec.md §4.3). Installed via WithRootsHandler.
type RootsHandler func(ctx context.Context) ([]mcp.Root, error)

// config accumulates builder Options before New validates and
// wires them. Mirrors internal/httpkit's ClientOption/clientConfig
// pattern, generalized from HTTP-client knobs to the table of options
// spec.md §4.3 enumerates.
type config struct {
	implementation mcp.Implementation

	roots            bool
	rootsListChanged bool
	sampling         bool
	experimental     map[string]any

	websocketURL    string
	httpURL         string
	stdioCommand    string
	stdioArgs       []string
	stdioEnv        []string
	customTransport transport.Transport

	requestTimeout  time.Duration
	samplingHandler SamplingHandler
	rootsHandler    RootsHandler

	logger *slog.Logger
}

// Option configures a Client built by New.
type Option func(*config)

// WithImplementation sets the local Implementation advertised as
// clientInfo during initialize.
func WithImplementation(name, version string) Option {
	return func(c *config) { c.implementation = mcp.Implementation{Name: name, Version: version} }
}

// WithRoots advertises the roots capability.
func WithRoots(enabled bool) Option {
	return func(c *config) { c.roots = enabled }
}

// WithRootsListChanged advertises roots.listChanged. Only meaningful if
// WithRoots(true) is also set.
func WithRootsListChanged(enabled bool) Option {
	return func(c *config) { c.rootsListChanged = enabled }
}

// WithSampling advertises the sampling capability.
func WithSampling(enabled bool) Option {
	return func(c *config) { c.sampling = enabled }
}

// WithExperimental merges extra entries into the advertised experimental
// capability map.
func WithExperimental(experimental map[string]any) Option {
	return func(c *config) {
		if c.experimental == nil {
			c.experimental = make(map[string]any, len(experimental))
		}
		for k, v := range experimental {
			c.experimental[k] = v
		}
	}
}

// WithWebSocketURL selects a WebSocket transport dialed to url. Exactly
// one of WithWebSocketURL, WithHTTPURL, WithStdioCommand, or
// WithCustomTransport is required.
func WithWebSocketURL(url string) Option {
	return func(c *config) { c.websocketURL = url }
}

// WithHTTPURL selects a streamable-HTTP transport targeting url. Exactly
// one of WithWebSocketURL, WithHTTPURL, WithStdioCommand, or
// WithCustomTransport is required.
func WithHTTPURL(url string) Option {
	return func(c *config) { c.httpURL = url }
}

// WithStdioCommand selects a stdio transport that launches command as a
// subprocess and speaks newline-delimited JSON-RPC over its stdin/stdout.
// Exactly one of WithWebSocketURL, WithHTTPURL, WithStdioCommand, or
// WithCustomTransport is required.
func WithStdioCommand(command string, args ...string) Option {
	return func(c *config) {
		c.stdioCommand = command
		c.stdioArgs = args
	}
}

// WithStdioEnv appends environment variables ("KEY=VALUE") to the
// subprocess launched by WithStdioCommand.
func WithStdioEnv(env ...string) Option {
	return func(c *config) { c.stdioEnv = append(c.stdioEnv, env...) }
}

// WithCustomTransport selects a caller-supplied transport.Transport.
// Exactly one of WithWebSocketURL, WithHTTPURL, WithStdioCommand, or
// WithCustomTransport is required.
func WithCustomTransport(t transport.Transport) Option {
	return func(c *config) { c.customTransport = t }
}

// WithRequestTimeout sets the default per-request deadline applied when
// a call's context carries none.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *config) { c.requestTimeout = d }
}

// WithSamplingHandler installs the responder for inbound
// sampling/createMessage requests. Required if WithSampling(true) is set.
func WithSamplingHandler(fn SamplingHandler) Option {
	return func(c *config) { c.samplingHandler = fn }
}

// WithRootsHandler installs the responder for inbound roots/list
// requests. Required if WithRoots(true) is set.
func WithRootsHandler(fn RootsHandler) Option {
	return func(c *config) { c.rootsHandler = fn }
}

// WithLogger sets the structured logger used by the client and its
// session engine. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

func defaultConfig() *config {
	return &config{
		implementation: mcp.Implementation{Name: "mcpsdk-client", Version: buildinfo.Version},
		requestTimeout: 30 * time.Second,
	}
}

// buildTransport validates that exactly one transport option was given
// and constructs (or returns) the chosen transport.Transport.
func (c *config) buildTransport() (transport.Transport, error) {
	chosen := 0
	if c.websocketURL != "" {
		chosen++
	}
	if c.httpURL != "" {
		chosen++
	}
	if c.stdioCommand != "" {
		chosen++
	}
	if c.customTransport != nil {
		chosen++
	}
	if chosen != 1 {
		return nil, fmt.Errorf("client: exactly one of WithWebSocketURL, WithHTTPURL, WithStdioCommand, or WithCustomTransport is required, got %d", chosen)
	}

	switch {
	case c.websocketURL != "":
		return transport.NewWebSocketTransport(transport.WebSocketConfig{
			URL:    c.websocketURL,
			Logger: c.logger,
		}), nil
	case c.httpURL != "":
		return transport.NewHTTPTransport(transport.HTTPConfig{
			URL:    c.httpURL,
			Logger: c.logger,
		}), nil
	case c.stdioCommand != "":
		return transport.NewStdioTransport(transport.StdioConfig{
			Command: c.stdioCommand,
			Args:    c.stdioArgs,
			Env:     c.stdioEnv,
			Logger:  c.logger,
		}), nil
	default:
		return c.customTransport, nil
	}
}

func (c *config) clientCapabilities() mcp.ClientCapabilities {
	caps := mcp.ClientCapabilities{}
	if c.roots {
		caps.Roots = &mcp.RootsCapability{ListChanged: c.rootsListChanged}
	}
	if c.sampling {
		caps.Sampling = &struct{}{}
	}
	if len(c.experimental) > 0 {
		caps.Experimental = c.experimental
	}
	return caps
}
