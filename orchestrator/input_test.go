package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/voocel/mas/agent"
	"github.com/voocel/mas/agentcore"
	"github.com/voocel/mas/runtime"
	"github.com/voocel/mas/schema"
	"github.com/voocel/mas/tools"
)

// ctxProbeTool reports the runtime.TurnContext its execution saw, proving
// the orchestrator threads turn identity through to tool executions.
type ctxProbeTool struct{ *tools.BaseTool }

func newCtxProbeTool() *ctxProbeTool {
	return &ctxProbeTool{BaseTool: tools.NewBaseTool("whoami", "reports turn identity", tools.CreateToolSchema("reports turn identity", nil, nil))}
}

func (p *ctxProbeTool) Execute(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
	tc, _ := runtime.TurnContextFrom(ctx)
	return json.Marshal(map[string]string{
		"conversation": tc.ConversationID,
		"user":         tc.UserID,
		"agent":        tc.AgentID,
	})
}

func TestStreamTurn_PlainText(t *testing.T) {
	ag := agent.New("assistant", "Assistant", agent.WithSystemPrompt("s"))
	model := &fakeModel{steps: []agentcore.Message{textMsg("Hello")}}
	h := newHarness(t, ag, model)

	events := h.orch.StreamTurn(context.Background(), RuntimeInput{
		ConversationID: "conv-s1",
		AgentID:        "assistant",
		Message:        "hi",
	})

	var got []schema.RuntimeEvent
	for ev := range drainWithTimeout(t, events) {
		got = append(got, ev)
	}
	if len(got) == 0 {
		t.Fatal("no events received")
	}
	last := got[len(got)-1]
	if last.Type != schema.RuntimeEventTextComplete || last.Content != "Hello" {
		t.Errorf("final event = %+v, want text-complete Hello", last)
	}

	// The user message (with its minted id) landed in history.
	cs, ok := h.orch.Store.Get("conv-s1")
	if !ok {
		t.Fatal("conversation state not found")
	}
	history, err := cs.History().GetConversationContext(context.Background())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) < 1 || history[0].Role != schema.RoleUser || history[0].ID == "" {
		t.Errorf("history[0] = %+v, want a user message with a minted id", history[0])
	}
}

// drainWithTimeout guards against a stuck producer: the test fails instead of hanging
// if the channel neither delivers nor closes within the deadline.
func drainWithTimeout(t *testing.T, events <-chan schema.RuntimeEvent) <-chan schema.RuntimeEvent {
	t.Helper()
	out := make(chan schema.RuntimeEvent)
	go func() {
		defer close(out)
		deadline := time.After(5 * time.Second)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				out <- ev
			case <-deadline:
				t.Error("timed out waiting for the event channel to close")
				return
			}
		}
	}()
	return out
}

func TestStreamTurn_ToolSeesTurnContext(t *testing.T) {
	ag := agent.New("assistant", "Assistant", agent.WithTools(newCtxProbeTool()))
	model := &fakeModel{steps: []agentcore.Message{
		toolCallMsg("call-1", "whoami", nil),
		textMsg("done"),
	}}
	h := newHarness(t, ag, model, newCtxProbeTool())

	events := h.orch.StreamTurn(context.Background(), RuntimeInput{
		ConversationID: "conv-s2",
		AgentID:        "assistant",
		UserID:         "user-9",
		Message:        "who am i",
		Context:        map[string]interface{}{"locale": "en"},
	})

	var probe map[string]string
	for ev := range drainWithTimeout(t, events) {
		if ev.Type == schema.RuntimeEventToolCallResult {
			if err := json.Unmarshal(ev.Result, &probe); err != nil {
				t.Fatalf("unmarshal probe result: %v", err)
			}
		}
	}
	if probe == nil {
		t.Fatal("tool never ran")
	}
	if probe["conversation"] != "conv-s2" || probe["user"] != "user-9" || probe["agent"] != "assistant" {
		t.Errorf("probe = %v, want conversation=conv-s2 user=user-9 agent=assistant", probe)
	}
}

func TestSubmitApproval_Forwarding(t *testing.T) {
	ag := agent.New("assistant", "Assistant", agent.WithTools(newUnsafeTool()))
	model := &fakeModel{steps: []agentcore.Message{
		toolCallMsg("call-1", "delete_everything", nil),
		textMsg("ok"),
	}}
	h := newHarness(t, ag, model, newUnsafeTool())

	events := h.orch.StreamTurn(context.Background(), RuntimeInput{
		ConversationID: "conv-s3",
		AgentID:        "assistant",
		Message:        "delete",
	})

	approved := false
	for ev := range drainWithTimeout(t, events) {
		if ev.Type == schema.RuntimeEventApprovalRequired && !approved {
			approved = true
			if !h.orch.SubmitApproval(ev.ToolCallID, true, "") {
				t.Error("SubmitApproval returned false for a pending slot")
			}
			// A duplicate decision is a no-op, not an error.
			if h.orch.SubmitApproval(ev.ToolCallID, false, "too late") {
				t.Error("second SubmitApproval resolved an already-resolved slot")
			}
		}
	}
	if !approved {
		t.Fatal("never saw approval-required")
	}
}
