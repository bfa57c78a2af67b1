// Package handoff synthesizes the per-agent routing tools that let a model
// hand the conversation off to another agent by name. Each agent's declared
// routing targets become handoff_to_<agentId> tools; calling one produces a
// schema.Handoff payload the orchestrator recognizes as an agent switch
// instead of an ordinary tool result.
package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"github.com/voocel/mas/schema"
	"github.com/voocel/mas/tools"
)

// ToolPrefix is the wire-visible prefix for synthesized handoff tools.
const ToolPrefix = "handoff_to_"

var invalidToolChars = regexp.MustCompile(`[^a-z0-9_-]+`)

// ToolName returns the handoff tool name for the given agent id, collapsing
// it to the [a-z0-9_-] charset tool names require.
func ToolName(agentID string) string {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return ToolPrefix + "unknown"
	}
	normalized := strings.ToLower(agentID)
	normalized = invalidToolChars.ReplaceAllString(normalized, "_")
	normalized = strings.Trim(normalized, "_")
	if normalized == "" {
		normalized = "agent"
	}
	return ToolPrefix + normalized
}

// IsHandoffTool reports whether name was synthesized by this package.
func IsHandoffTool(name string) bool {
	return strings.HasPrefix(name, ToolPrefix)
}

// TargetFromToolName extracts an agent id candidate from a handoff tool
// name. Because tool names are sanitized and possibly hash-suffixed for
// collision resolution, the result must still be validated against the
// live set of agent ids (in the orchestrator, through its Resolver).
func TargetFromToolName(name string) (string, bool) {
	if !IsHandoffTool(name) {
		return "", false
	}
	return strings.TrimPrefix(name, ToolPrefix), true
}

type handoffArgs struct {
	Reason  string                 `json:"reason,omitempty"`
	Message string                 `json:"message,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Tool is the synthesized handoff_to_<agentId> tool; calling it produces a
// schema.Handoff result the orchestrator recognizes and acts on instead of
// treating it as an ordinary tool result.
type Tool struct {
	*tools.BaseTool
	TargetAgentID string
}

// NewTool builds a handoff tool targeting agentID, optionally carrying a
// human-readable description (falls back to a generic one).
func NewTool(agentID, toolName, description string) *Tool {
	if strings.TrimSpace(toolName) == "" {
		toolName = ToolName(agentID)
	}
	if strings.TrimSpace(description) == "" {
		description = fmt.Sprintf("Hand off the conversation to agent %s", agentID)
	}
	schemaDef := tools.CreateToolSchema(
		description,
		map[string]interface{}{
			"reason":  tools.StringProperty("Why control is being handed off"),
			"message": tools.StringProperty("Message to pass to the receiving agent"),
			"payload": tools.ObjectProperty("Additional structured data for the receiving agent", map[string]interface{}{}),
		},
		nil,
	)
	base := tools.NewBaseTool(toolName, description, schemaDef)
	cfg := *tools.DefaultToolConfig
	cfg.Sandbox = false
	base.SetConfig(&cfg)
	return &Tool{BaseTool: base, TargetAgentID: agentID}
}

// Execute returns {"handoff": schema.Handoff} so the orchestrator's tool
// dispatch can special-case it without the tool layer knowing about turns.
func (t *Tool) Execute(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args handoffArgs
	_ = json.Unmarshal(input, &args)
	h := &schema.Handoff{
		Target:  t.TargetAgentID,
		Reason:  args.Reason,
		Message: args.Message,
		Payload: args.Payload,
	}
	return json.Marshal(map[string]interface{}{"handoff": h})
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

// TargetInfo is the subset of an agent's definition the handoff engine
// needs to word a synthesized tool's description: "Transfer the
// conversation to <name>. <description>".
type TargetInfo struct {
	Name        string
	Description string
}

// TargetLookup resolves an agent id to its name/description, so
// GenerateTools can word each handoff tool from the target agent itself
// instead of a generic placeholder. A lookup returning ok=false is
// skipped: the caller declared a route to an agent id that doesn't exist.
type TargetLookup func(agentID string) (TargetInfo, bool)

// GenerateTools builds one handoff tool per entry in canHandoffTo that
// lookup resolves, deduplicating synthesized names: when two or more agent
// ids collapse to the same sanitized base name, every one of them gets an
// 8-hex-digit fnv32a suffix of its own id, so construction never silently
// drops a route.
func GenerateTools(canHandoffTo []string, lookup TargetLookup) []tools.Tool {
	if len(canHandoffTo) == 0 {
		return nil
	}
	counts := make(map[string]int, len(canHandoffTo))
	for _, id := range canHandoffTo {
		counts[baseName(id)]++
	}
	seen := make(map[string]bool, len(canHandoffTo))
	out := make([]tools.Tool, 0, len(canHandoffTo))
	for _, id := range canHandoffTo {
		if lookup != nil {
			if _, ok := lookup(id); !ok {
				continue
			}
		}
		base := baseName(id)
		name := ToolPrefix + base
		if counts[base] > 1 {
			name = ToolPrefix + base + "_" + shortHash(id)
		}
		if seen[name] {
			continue
		}
		seen[name] = true

		description := ""
		if lookup != nil {
			if info, ok := lookup(id); ok {
				description = fmt.Sprintf("Transfer the conversation to %s.", info.Name)
				if info.Description != "" {
					description = fmt.Sprintf("%s %s", description, info.Description)
				}
			}
		}
		out = append(out, NewTool(id, name, description))
	}
	return out
}

func baseName(agentID string) string {
	normalized := strings.ToLower(strings.TrimSpace(agentID))
	normalized = invalidToolChars.ReplaceAllString(normalized, "_")
	normalized = strings.Trim(normalized, "_")
	if normalized == "" {
		normalized = "agent"
	}
	return normalized
}

func shortHash(value string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(value))
	return fmt.Sprintf("%08x", h.Sum32())
}

// ParseResult extracts a *schema.Handoff from a tool's raw JSON result, if
// that result is a handoff payload ({"handoff": {...}}) rather than an
// ordinary tool result.
func ParseResult(result json.RawMessage) *schema.Handoff {
	var wrapper struct {
		Handoff *schema.Handoff `json:"handoff"`
	}
	if err := json.Unmarshal(result, &wrapper); err != nil || wrapper.Handoff == nil {
		return nil
	}
	if !wrapper.Handoff.IsValid() {
		return nil
	}
	return wrapper.Handoff
}
