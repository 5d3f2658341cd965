package mcp

// Implementation identifies a peer by name and version, carried in the
// initialize handshake as clientInfo or serverInfo (spec.md §3).
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// RootsCapability advertises that a client exposes root URIs to the
// server, optionally with change notifications (spec.md §3).
type RootsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ClientCapabilities is the capability set a client advertises during
// initialize (spec.md §3).
type ClientCapabilities struct {
	Roots        *RootsCapability `json:"roots,omitempty"`
	Sampling     *struct{}        `json:"sampling,omitempty"`
	Experimental map[string]any   `json:"experimental,omitempty"`
}

// HasRoots reports whether the roots capability was advertised.
func (c *ClientCapabilities) HasRoots() bool { return c != nil && c.Roots != nil }

// HasRootsListChanged reports whether roots.listChanged was advertised.
func (c *ClientCapabilities) HasRootsListChanged() bool {
	return c.HasRoots() && c.Roots.ListChanged
}

// HasSampling reports whether the sampling capability was advertised.
func (c *ClientCapabilities) HasSampling() bool { return c != nil && c.Sampling != nil }

// ResourcesCapability advertises server support for resource operations,
// optionally subscriptions and change notifications (spec.md §3).
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

// PromptsCapability advertises server support for prompts (spec.md §3).
type PromptsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ToolsCapability advertises server support for tools (spec.md §3).
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ServerCapabilities is the capability set a server advertises during
// initialize (spec.md §3).
type ServerCapabilities struct {
	Resources    *ResourcesCapability `json:"resources,omitempty"`
	Prompts      *PromptsCapability  `json:"prompts,omitempty"`
	Tools        *ToolsCapability    `json:"tools,omitempty"`
	Logging      *struct{}           `json:"logging,omitempty"`
	Completion   *struct{}           `json:"completion,omitempty"`
	Experimental map[string]any      `json:"experimental,omitempty"`
}

// HasResources reports whether the resources capability was advertised.
func (c *ServerCapabilities) HasResources() bool { return c != nil && c.Resources != nil }

// HasResourcesSubscribe reports whether resources.subscribe was advertised.
func (c *ServerCapabilities) HasResourcesSubscribe() bool {
	return c.HasResources() && c.Resources.Subscribe
}

// HasResourcesListChanged reports whether resources.listChanged was advertised.
func (c *ServerCapabilities) HasResourcesListChanged() bool {
	return c.HasResources() && c.Resources.ListChanged
}

// HasPrompts reports whether the prompts capability was advertised.
func (c *ServerCapabilities) HasPrompts() bool { return c != nil && c.Prompts != nil }

// HasTools reports whether the tools capability was advertised.
func (c *ServerCapabilities) HasTools() bool { return c != nil && c.Tools != nil }

// HasLogging reports whether the logging capability was advertised.
func (c *ServerCapabilities) HasLogging() bool { return c != nil && c.Logging != nil }

// HasCompletion reports whether the completion capability was advertised.
func (c *ServerCapabilities) HasCompletion() bool { return c != nil && c.Completion != nil }

// InitializeParams is the payload of the initialize request sent by a
// client (spec.md §6).
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Implementation     `json:"clientInfo"`
}

// InitializeResult is the payload of the initialize response sent by a
// server (spec.md §6).
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
}
