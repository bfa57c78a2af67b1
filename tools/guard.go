package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/voocel/mas/schema"
)

// EffectiveSet builds the tool set a single turn's model call is offered:
// the agent's own declared tools, the synthesized handoff tools, and any
// frontend-declared tools for that turn, unioned by name. Two tools
// declared under the same name is a configuration error the caller should
// surface up front rather than letting the later one silently win.
func EffectiveSet(agentTools, handoffTools, frontendTools []Tool) ([]Tool, error) {
	byName := make(map[string]Tool)
	var out []Tool
	add := func(group string, list []Tool) error {
		for _, t := range list {
			name := t.Name()
			if existing, ok := byName[name]; ok {
				return fmt.Errorf("duplicate tool name %q: declared by both an existing tool and the %s group (%T vs %T)", name, group, existing, t)
			}
			byName[name] = t
			out = append(out, t)
		}
		return nil
	}
	if err := add("agent", agentTools); err != nil {
		return nil, err
	}
	if err := add("handoff", handoffTools); err != nil {
		return nil, err
	}
	if err := add("frontend", frontendTools); err != nil {
		return nil, err
	}
	return out, nil
}

// GuardConfig bounds a single tool call's execution: a hard wall-clock
// timeout and a cap on the serialized result size, mirroring
// ToolConfig.Timeout/Sandbox's role for the whole-registry case but scoped
// to one dispatch.
type GuardConfig struct {
	Timeout        time.Duration // <=0 falls back to the tool's own ToolConfig.Timeout
	MaxResultBytes int           // <=0 means unbounded
}

// ExecuteWithGuards runs one tool call through the full dispatch sequence
// that gates a result before it is handed back to the model: lookup,
// schema validation, a bounded execution context, and result-size capping.
// It is a standalone per-call function so the orchestrator can run
// approval-gating before it.
func ExecuteWithGuards(ctx context.Context, registry *Registry, call schema.ToolCall, guard GuardConfig) (schema.ToolResult, error) {
	tool, exists := registry.Get(call.Name)
	if !exists {
		err := schema.NewToolError(call.Name, "execute", schema.ErrToolNotFound)
		return schema.ToolResult{ID: call.ID, Error: err.Error()}, err
	}

	if validator, ok := tool.(interface {
		ValidateInput(json.RawMessage) error
	}); ok {
		if err := validator.ValidateInput(call.Args); err != nil {
			return schema.ToolResult{ID: call.ID, Error: err.Error()}, err
		}
	}

	execCtx := ctx
	if timeout := effectiveTimeout(tool, guard.Timeout); timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := tool.Execute(execCtx, call.Args)
	if err != nil {
		return schema.ToolResult{ID: call.ID, Error: err.Error()}, err
	}

	if guard.MaxResultBytes > 0 && len(result) > guard.MaxResultBytes {
		oversizeErr := fmt.Errorf("tool %q result is %d bytes, exceeds the %d byte limit: %w", call.Name, len(result), guard.MaxResultBytes, schema.ErrToolResultTooLarge)
		// The oversized payload is dropped, not forwarded: the model gets a
		// truncation marker it can react to instead of the raw blob.
		marker, _ := json.Marshal(map[string]interface{}{"truncated": true, "size": len(result)})
		return schema.ToolResult{ID: call.ID, Result: marker, Error: oversizeErr.Error()}, oversizeErr
	}

	return schema.ToolResult{ID: call.ID, Result: result}, nil
}

func effectiveTimeout(tool Tool, override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	if cfg := getToolConfig(tool); cfg != nil {
		return cfg.Timeout
	}
	return 0
}

// getToolConfig recovers a tool's own ToolConfig when it exposes one, such
// as BaseTool.Config. Tools built without BaseTool have no configured
// timeout to fall back on.
func getToolConfig(tool Tool) *ToolConfig {
	configured, ok := tool.(interface{ Config() *ToolConfig })
	if !ok {
		return nil
	}
	return configured.Config()
}
