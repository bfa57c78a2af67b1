// Package mcp exposes remote Model Context Protocol tools to the runtime.
// The transports themselves (stdio, HTTP) live with the caller; this
// package defines the client contract the runtime consumes and the bridge
// that makes a remote tool look identical to a local tools.Tool, so the
// orchestrator never learns whether a tool call crossed a process
// boundary.
package mcp

import (
	"context"
	"encoding/json"

	"github.com/voocel/mas/tools"
)

// ToolInfo describes one tool a connected MCP server advertises.
type ToolInfo struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	InputSchema *tools.ToolSchema `json:"input_schema,omitempty"`
}

// Client is the connection to a single MCP server. Implementations own the
// transport (stdio pipe, HTTP session); the runtime only drives this
// surface: connect once, list what the server offers, call tools by their
// server-side name, and disconnect when the hosting process shuts down.
type Client interface {
	Connect(ctx context.Context) error
	ListTools(ctx context.Context) ([]ToolInfo, error)
	CallTool(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error)
	Disconnect() error
	IsConnected() bool
}
