// Package mcpconn implements the MCP Connection Manager (C3): one
// manager per remote server, owning its lifecycle state machine,
// background health checker, and exponential-backoff reconnection
// strategy (spec.md §4.3). Ported from the teacher's pkg/mcp
// {client,manager,config}.go, which adapted MCP sessions into tools but
// had no explicit state machine, health-check loop, or backoff
// reconnection; those are grounded on original_source/src/nxs/
// mcp_client/connection/{lifecycle,health,manager}.py instead.
package mcpconn

import "context"

// ToolDefinition is one capability an MCP server advertises.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema []byte // JSON-Schema, opaque to this package
}

// Prompt is a named prompt template an MCP server advertises.
type Prompt struct {
	Name        string
	Description string
}

// Resource is a readable artifact an MCP server advertises.
type Resource struct {
	URI         string
	Name        string
	Description string
}

// Session is the MCP wire contract this package consumes (spec.md §6
// "MCP wire contract"). Transport details live behind ConnectFunc;
// everything downstream of Connect only sees this interface.
type Session interface {
	Initialize(ctx context.Context) error
	ListTools(ctx context.Context) ([]ToolDefinition, error)
	ListPrompts(ctx context.Context) ([]Prompt, error)
	ListResources(ctx context.Context) ([]Resource, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
	Close() error
}

// ConnectFunc establishes and maintains one Session until ctx is
// cancelled, per spec.md §6's "connect_fn(stop_event)". Implementations
// own their transport (stdio, SSE, whatever the server speaks); the
// manager never reaches past the Session interface.
type ConnectFunc func(ctx context.Context) (Session, error)
