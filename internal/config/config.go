// Package config loads the server registry a host application hands to
// a connection manager built on this SDK: the set of MCP servers to
// launch or dial, and how to reach each one.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// searchPathsFunc is a var so tests can override the default search
// order without touching the real filesystem.
var searchPathsFunc = DefaultSearchPaths

// DefaultSearchPaths returns the config file search order. An explicit
// path (e.g. from a -config flag) is checked first by FindConfig. Then:
// ./mcpservers.yaml, ~/.config/mcpsdk/servers.yaml, /etc/mcpsdk/servers.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"mcpservers.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "mcpsdk", "servers.yaml"))
	}

	paths = append(paths, "/etc/mcpsdk/servers.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must
// exist. Otherwise, searches DefaultSearchPaths and returns the first
// that exists. Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range searchPathsFunc() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", searchPathsFunc())
}

// Transport names which transport.Transport backend a ServerEntry dials.
type Transport string

const (
	TransportStdio     Transport = "stdio"
	TransportHTTP      Transport = "http"
	TransportWebSocket Transport = "websocket"
)

// ServerEntry names one MCP server a connection manager can launch
// (stdio) or dial (http/websocket).
type ServerEntry struct {
	Name      string    `yaml:"name"`
	Transport Transport `yaml:"transport"`

	// Command/Args/Env apply when Transport is stdio.
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
	Env     []string `yaml:"env,omitempty"`

	// URL applies when Transport is http or websocket.
	URL string `yaml:"url,omitempty"`

	// TimeoutSec bounds the per-request default timeout a client built
	// for this entry should apply (default 30).
	TimeoutSec int `yaml:"timeout_sec,omitempty"`
}

// Config is the full server registry.
type Config struct {
	Servers  []ServerEntry `yaml:"servers"`
	LogLevel string        `yaml:"log_level"`
}

// Load reads configuration from a YAML file, expands environment
// variables, applies defaults for any unset fields, and validates the
// result. After Load returns successfully, every ServerEntry is usable
// without additional nil/empty checks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${MCP_SERVER_URL}) so secrets
	// and per-deployment values need not live in the file itself.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in zero-value fields with sensible defaults.
// Called automatically by Load.
func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	for i := range c.Servers {
		if c.Servers[i].TimeoutSec == 0 {
			c.Servers[i].TimeoutSec = 30
		}
	}
}

// Validate checks that the configuration is internally consistent. It
// runs after applyDefaults, so it can assume defaults are populated.
// Returns an error describing the first problem found, or nil.
func (c *Config) Validate() error {
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}

	seen := make(map[string]bool, len(c.Servers))
	for _, s := range c.Servers {
		if s.Name == "" {
			return fmt.Errorf("servers: entry missing name")
		}
		if seen[s.Name] {
			return fmt.Errorf("servers: duplicate name %q", s.Name)
		}
		seen[s.Name] = true

		switch s.Transport {
		case TransportStdio:
			if s.Command == "" {
				return fmt.Errorf("servers.%s: stdio transport requires command", s.Name)
			}
		case TransportHTTP, TransportWebSocket:
			if s.URL == "" {
				return fmt.Errorf("servers.%s: %s transport requires url", s.Name, s.Transport)
			}
		default:
			return fmt.Errorf("servers.%s: unknown transport %q (want stdio, http, or websocket)", s.Name, s.Transport)
		}

		if s.TimeoutSec < 1 {
			return fmt.Errorf("servers.%s: timeout_sec %d must be positive", s.Name, s.TimeoutSec)
		}
	}
	return nil
}

// ServerByName returns the entry with the given name, if any.
func (c *Config) ServerByName(name string) (*ServerEntry, bool) {
	for i := range c.Servers {
		if c.Servers[i].Name == name {
			return &c.Servers[i], true
		}
	}
	return nil, false
}

// Default returns an empty, fully-defaulted registry suitable as a
// starting point before a host application appends its own entries.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
