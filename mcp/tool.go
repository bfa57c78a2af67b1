package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/voocel/mas/schema"
	"github.com/voocel/mas/tools"
)

const maxToolNameLen = 64

var invalidNameChars = regexp.MustCompile(`[^a-z0-9_-]+`)

// Tool bridges one remote MCP tool into the runtime's tools.Tool contract.
// Execute delegates to the owning client's CallTool; a deadline hit while
// the remote call is in flight surfaces as schema.ErrMCPTimeout so the
// orchestrator reports it under its own stable code rather than the local
// tool-timeout one.
type Tool struct {
	*tools.BaseTool
	client     Client
	serverID   string
	remoteName string
}

// NewTool wraps info, advertised by the server identified as serverID and
// reachable through client, as a registry-ready tool. The registered name
// is mcp_<serverID>_<toolName>, sanitized and length-capped so providers
// with strict tool-name charsets accept it; the server-side name is kept
// verbatim for the actual call.
func NewTool(client Client, serverID string, info ToolInfo) *Tool {
	desc := strings.TrimSpace(info.Description)
	if desc == "" {
		desc = fmt.Sprintf("MCP tool %s.%s", serverID, info.Name)
	} else {
		desc = fmt.Sprintf("MCP tool %s.%s: %s", serverID, info.Name, desc)
	}

	inputSchema := info.InputSchema
	if inputSchema == nil {
		inputSchema = &tools.ToolSchema{Type: "object", Properties: map[string]interface{}{}}
	}

	base := tools.NewBaseTool(safeName(serverID, info.Name), desc, inputSchema).
		WithCapabilities(tools.CapabilityNetwork)
	return &Tool{
		BaseTool:   base,
		client:     client,
		serverID:   serverID,
		remoteName: info.Name,
	}
}

// ServerID returns the id of the MCP server this tool calls into.
func (t *Tool) ServerID() string {
	return t.serverID
}

// RemoteName returns the tool's server-side name, which may differ from the
// sanitized name it was registered under.
func (t *Tool) RemoteName() string {
	return t.remoteName
}

func (t *Tool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	if !t.client.IsConnected() {
		if err := t.client.Connect(ctx); err != nil {
			return nil, schema.NewToolError(t.Name(), "connect", err)
		}
	}

	result, err := t.client.CallTool(ctx, t.remoteName, input)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("mcp server %s: tool %s: %w", t.serverID, t.remoteName, schema.ErrMCPTimeout)
		}
		return nil, schema.NewToolError(t.Name(), "call", err)
	}
	return result, nil
}

// ExecuteAsync overrides BaseTool's default, which would otherwise call
// BaseTool.Execute rather than Tool.Execute (Go embedding doesn't dispatch
// virtually back to the outer type).
func (t *Tool) ExecuteAsync(ctx context.Context, input json.RawMessage) (<-chan tools.ToolResult, error) {
	resultChan := make(chan tools.ToolResult, 1)
	go func() {
		defer close(resultChan)
		result, err := t.Execute(ctx, input)
		if err != nil {
			resultChan <- tools.ToolResult{Success: false, Error: err.Error()}
			return
		}
		resultChan <- tools.ToolResult{Success: true, Data: result}
	}()
	return resultChan, nil
}

// ToolsFromClient connects client if needed, lists the server's tools, and
// bridges each into a registry-ready tools.Tool.
func ToolsFromClient(ctx context.Context, serverID string, client Client) ([]tools.Tool, error) {
	if !client.IsConnected() {
		if err := client.Connect(ctx); err != nil {
			return nil, fmt.Errorf("mcp server %s: connect: %w", serverID, err)
		}
	}
	infos, err := client.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("mcp server %s: list tools: %w", serverID, err)
	}
	out := make([]tools.Tool, 0, len(infos))
	for _, info := range infos {
		out = append(out, NewTool(client, serverID, info))
	}
	return out, nil
}

// ToolsForServers bridges the tools of every client whose server id appears
// in allowed (an agent's allowedMcpServers list); a nil allowed list means
// every configured server. Servers are visited in sorted id order so the
// resulting tool list is stable under map-ordering changes.
func ToolsForServers(ctx context.Context, clients map[string]Client, allowed []string) ([]tools.Tool, error) {
	var allowSet map[string]bool
	if allowed != nil {
		allowSet = make(map[string]bool, len(allowed))
		for _, id := range allowed {
			allowSet[id] = true
		}
	}

	ids := make([]string, 0, len(clients))
	for id := range clients {
		if allowSet == nil || allowSet[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var out []tools.Tool
	for _, id := range ids {
		bridged, err := ToolsFromClient(ctx, id, clients[id])
		if err != nil {
			return nil, err
		}
		out = append(out, bridged...)
	}
	return out, nil
}

// safeName collapses a server/tool pair into the [a-z0-9_-] charset most
// providers require of tool names, capped at maxToolNameLen.
func safeName(serverID, toolName string) string {
	name := "mcp_" + sanitize(serverID) + "_" + sanitize(toolName)
	if len(name) > maxToolNameLen {
		name = name[:maxToolNameLen]
		name = strings.TrimRight(name, "_-")
	}
	return name
}

func sanitize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = invalidNameChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "x"
	}
	return s
}
