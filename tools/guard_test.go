package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/voocel/mas/schema"
)

type echoTool struct {
	*BaseTool
	delay time.Duration
}

func newEchoTool(name string, delay time.Duration) *echoTool {
	return &echoTool{BaseTool: NewBaseTool(name, "echoes its input", CreateToolSchema("echo", nil, nil)), delay: delay}
}

func (e *echoTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return input, nil
}

func TestEffectiveSetUnion(t *testing.T) {
	a := []Tool{newEchoTool("search", 0)}
	h := []Tool{newEchoTool("handoff_to_writer", 0)}
	out, err := EffectiveSet(a, h, nil)
	if err != nil {
		t.Fatalf("EffectiveSet: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
}

func TestEffectiveSetRejectsDuplicateNames(t *testing.T) {
	a := []Tool{newEchoTool("search", 0)}
	f := []Tool{newEchoTool("search", 0)}
	if _, err := EffectiveSet(a, nil, f); err == nil {
		t.Fatal("expected a duplicate-name error")
	}
}

func TestExecuteWithGuardsToolNotFound(t *testing.T) {
	registry := NewRegistry()
	_, err := ExecuteWithGuards(context.Background(), registry, schema.ToolCall{ID: "1", Name: "missing"}, GuardConfig{})
	if err == nil {
		t.Fatal("expected ErrToolNotFound")
	}
}

func TestExecuteWithGuardsCapsResultSize(t *testing.T) {
	registry := NewRegistry()
	tool := newEchoTool("echo", 0)
	_ = registry.Register(tool)

	big, _ := json.Marshal(map[string]string{"data": string(make([]byte, 100))})
	result, err := ExecuteWithGuards(context.Background(), registry, schema.ToolCall{ID: "1", Name: "echo", Args: big}, GuardConfig{MaxResultBytes: 10})
	if err == nil {
		t.Fatal("expected an oversized-result error")
	}
	if result.Error == "" {
		t.Error("expected result.Error to be set")
	}
	var marker struct {
		Truncated bool `json:"truncated"`
		Size      int  `json:"size"`
	}
	if err := json.Unmarshal(result.Result, &marker); err != nil {
		t.Fatalf("unmarshal truncation marker: %v", err)
	}
	if !marker.Truncated || marker.Size <= 10 {
		t.Errorf("marker = %+v, want truncated=true size>cap", marker)
	}
}

func TestExecuteWithGuardsTimeout(t *testing.T) {
	registry := NewRegistry()
	tool := newEchoTool("slow", 50*time.Millisecond)
	_ = registry.Register(tool)

	_, err := ExecuteWithGuards(context.Background(), registry, schema.ToolCall{ID: "1", Name: "slow", Args: json.RawMessage(`{}`)}, GuardConfig{Timeout: 5 * time.Millisecond})
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestExecuteWithGuardsSuccess(t *testing.T) {
	registry := NewRegistry()
	tool := newEchoTool("echo", 0)
	_ = registry.Register(tool)

	result, err := ExecuteWithGuards(context.Background(), registry, schema.ToolCall{ID: "1", Name: "echo", Args: json.RawMessage(`{"x":1}`)}, GuardConfig{})
	if err != nil {
		t.Fatalf("ExecuteWithGuards: %v", err)
	}
	if string(result.Result) != `{"x":1}` {
		t.Errorf("result = %s", result.Result)
	}
}
