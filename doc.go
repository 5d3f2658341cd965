// Package mcp implements the core message model, capability sets, and
// error taxonomy of the Model Context Protocol (MCP) — a bidirectional
// JSON-RPC 2.0 protocol carrying structured context (resources, prompts,
// tools, sampling, logging, completion, roots) between a host application
// and auxiliary context-providing peers.
//
// This package holds the wire-level types shared by both protocol roles.
// The transport-agnostic duplex channel lives in package transport, the
// framing/correlation/lifecycle engine lives in package session, and the
// role-specific surfaces live in packages client and server.
//
// MCP uses JSON-RPC 2.0 over pluggable transports (stdio subprocess,
// streamable HTTP, WebSocket, or a user-supplied transport.Transport).
// A session negotiates capabilities during initialize; operations are
// gated on what each side advertised.
package mcp
