package handoff

import (
	"context"
	"encoding/json"
	"testing"
)

func TestToolName(t *testing.T) {
	cases := map[string]string{
		"Researcher":   "handoff_to_researcher",
		"data analyst": "handoff_to_data_analyst",
		"":              "handoff_to_unknown",
	}
	for in, want := range cases {
		if got := ToolName(in); got != want {
			t.Errorf("ToolName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsHandoffToolAndTarget(t *testing.T) {
	if !IsHandoffTool("handoff_to_writer") {
		t.Error("expected handoff_to_writer to be recognized")
	}
	if IsHandoffTool("transfer_to_writer") {
		t.Error("transfer_to_ prefix must not be recognized as a handoff tool")
	}
	target, ok := TargetFromToolName("handoff_to_writer")
	if !ok || target != "writer" {
		t.Errorf("TargetFromToolName = %q, %v", target, ok)
	}
}

func TestGenerateToolsDedupesCollisions(t *testing.T) {
	toolsList := GenerateTools([]string{"Writer", "writer!", "editor"}, nil)
	names := make(map[string]bool)
	for _, tl := range toolsList {
		names[tl.Name()] = true
	}
	if len(toolsList) != 3 {
		t.Fatalf("expected 3 tools, got %d: %v", len(toolsList), names)
	}
	if !names["handoff_to_editor"] {
		t.Errorf("missing handoff_to_editor in %v", names)
	}
	collisionCount := 0
	for n := range names {
		if n != "handoff_to_editor" {
			collisionCount++
		}
	}
	if collisionCount != 2 {
		t.Errorf("expected 2 disambiguated writer tools, got %d", collisionCount)
	}
}

func TestToolExecuteReturnsHandoffPayload(t *testing.T) {
	tool := NewTool("researcher", "", "")
	input, _ := json.Marshal(map[string]any{"reason": "needs research", "message": "look into X"})
	result, err := tool.Execute(context.Background(), input)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	h := ParseResult(result)
	if h == nil {
		t.Fatal("ParseResult returned nil")
	}
	if h.Target != "researcher" || h.Reason != "needs research" {
		t.Errorf("got = %+v", h)
	}
}

func TestParseResultRejectsNonHandoffPayload(t *testing.T) {
	if ParseResult(json.RawMessage(`{"ok":true}`)) != nil {
		t.Error("expected nil for a non-handoff result")
	}
}

// A synthesized handoff tool's description must read "Transfer
// the conversation to <targetAgent.name>. <targetAgent.description>".
func TestGenerateToolsDescribesTargetFromLookup(t *testing.T) {
	lookup := func(agentID string) (TargetInfo, bool) {
		if agentID != "researcher" {
			return TargetInfo{}, false
		}
		return TargetInfo{Name: "Researcher", Description: "Finds and summarizes sources."}, true
	}

	toolsList := GenerateTools([]string{"researcher", "ghost"}, lookup)
	if len(toolsList) != 1 {
		t.Fatalf("expected 1 tool (ghost has no binding), got %d", len(toolsList))
	}
	got := toolsList[0].Description()
	want := "Transfer the conversation to Researcher. Finds and summarizes sources."
	if got != want {
		t.Errorf("description = %q, want %q", got, want)
	}
}
