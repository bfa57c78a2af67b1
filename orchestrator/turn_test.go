package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/voocel/mas/agent"
	"github.com/voocel/mas/agentcore"
	"github.com/voocel/mas/approval"
	"github.com/voocel/mas/handoff"
	"github.com/voocel/mas/llm"
	"github.com/voocel/mas/runtime"
	"github.com/voocel/mas/schema"
	"github.com/voocel/mas/tools"
)

// fakeModel is a scripted llm.ChatModel: each call to GenerateStream pops
// the next canned response off its queue, letting a test drive the
// orchestrator through a fixed sequence of model turns without a real
// provider.
type fakeModel struct {
	steps []agentcore.Message
	calls int
}

func (f *fakeModel) Generate(ctx context.Context, messages []llm.Message, toolSpecs []llm.ToolSpec, opts ...llm.CallOption) (*llm.LLMResponse, error) {
	panic("not used by these tests")
}

func (f *fakeModel) SupportsTools() bool { return true }

func (f *fakeModel) GenerateStream(ctx context.Context, messages []llm.Message, toolSpecs []llm.ToolSpec, opts ...llm.CallOption) (<-chan llm.StreamEvent, error) {
	if f.calls >= len(f.steps) {
		panic("fakeModel: ran out of scripted steps")
	}
	step := f.steps[f.calls]
	f.calls++

	ch := make(chan llm.StreamEvent, 8)
	go func() {
		defer close(ch)
		for _, block := range step.Content {
			if block.Type == agentcore.ContentText {
				// Split into two deltas so streaming is actually exercised.
				mid := len(block.Text) / 2
				if mid == 0 {
					ch <- llm.StreamEvent{Type: llm.StreamEventTextDelta, Delta: block.Text}
				} else {
					ch <- llm.StreamEvent{Type: llm.StreamEventTextDelta, Delta: block.Text[:mid]}
					ch <- llm.StreamEvent{Type: llm.StreamEventTextDelta, Delta: block.Text[mid:]}
				}
			}
		}
		ch <- llm.StreamEvent{Type: llm.StreamEventDone, Message: step}
	}()
	return ch, nil
}

var _ llm.ChatModel = (*fakeModel)(nil)

func textMsg(text string) agentcore.Message {
	return agentcore.Message{Role: agentcore.RoleAssistant, Content: []agentcore.ContentBlock{agentcore.TextBlock(text)}}
}

func toolCallMsg(id, name string, args map[string]any) agentcore.Message {
	raw, _ := json.Marshal(args)
	return agentcore.Message{
		Role: agentcore.RoleAssistant,
		Content: []agentcore.ContentBlock{
			agentcore.ToolCallBlock(agentcore.ToolCall{ID: id, Name: name, Args: raw}),
		},
	}
}

// echoTool returns its "text" argument verbatim.
type echoTool struct{ *tools.BaseTool }

func newEchoTool() *echoTool {
	schemaDef := tools.CreateToolSchema("echoes text back", map[string]any{
		"text": tools.StringProperty("text to echo"),
	}, []string{"text"})
	return &echoTool{BaseTool: tools.NewBaseTool("echo", "echoes text back", schemaDef)}
}

func (e *echoTool) Execute(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Text string `json:"text"`
	}
	_ = json.Unmarshal(input, &args)
	return json.Marshal(args.Text)
}

// unsafeTool requires approval before it runs.
type unsafeTool struct{ *tools.BaseTool }

func newUnsafeTool() *unsafeTool {
	t := &unsafeTool{BaseTool: tools.NewBaseTool("delete_everything", "dangerous", tools.CreateToolSchema("dangerous", nil, nil))}
	t.BaseTool.WithCapabilities(tools.CapabilityUnsafe)
	return t
}

func (u *unsafeTool) Execute(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	return json.Marshal("deleted")
}

// testHarness wires a single-agent Orchestrator with a scripted model.
type testHarness struct {
	orch  *Orchestrator
	model *fakeModel
}

func newHarness(t *testing.T, ag *agent.Agent, model *fakeModel, registryTools ...tools.Tool) *testHarness {
	t.Helper()
	store := runtime.NewStore()
	coord := approval.NewCoordinator()
	registry := tools.NewRegistry()
	for _, tl := range registryTools {
		if err := registry.Register(tl); err != nil {
			t.Fatalf("register tool %s: %v", tl.Name(), err)
		}
	}

	adapter := &llm.Adapter{Model: model, Provider: "fake"}
	binding := Binding{Agent: ag, Adapter: adapter}
	resolver := Resolver(func(agentID string) (Binding, bool) {
		if agentID == ag.ID() {
			return binding, true
		}
		return Binding{}, false
	})

	orch := New(store, coord, registry, resolver, Config{})
	return &testHarness{orch: orch, model: model}
}

func collectEvents(t *testing.T, orch *Orchestrator, conversationID, agentID string, msg schema.Message) []schema.RuntimeEvent {
	t.Helper()
	var events []schema.RuntimeEvent
	err := orch.ProcessTurn(context.Background(), conversationID, agentID, msg, func(ev schema.RuntimeEvent) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	return events
}

// runTurnAsync runs a turn in a goroutine and reports its outcome on a
// channel, since testing.T's FailNow-based helpers must only be called from
// the goroutine running the test itself.
func runTurnAsync(orch *Orchestrator, conversationID, agentID string, msg schema.Message) <-chan turnOutcome {
	out := make(chan turnOutcome, 1)
	go func() {
		var events []schema.RuntimeEvent
		err := orch.ProcessTurn(context.Background(), conversationID, agentID, msg, func(ev schema.RuntimeEvent) {
			events = append(events, ev)
		})
		out <- turnOutcome{events: events, err: err}
	}()
	return out
}

type turnOutcome struct {
	events []schema.RuntimeEvent
	err    error
}

// Plain turn, no tools: deltas stream and the turn ends in text-complete.
func TestProcessTurn_PlainTextNoTools(t *testing.T) {
	ag := agent.New("assistant", "Assistant", agent.WithSystemPrompt("s"))
	model := &fakeModel{steps: []agentcore.Message{textMsg("Hello")}}
	h := newHarness(t, ag, model)

	events := collectEvents(t, h.orch, "conv-1", "assistant", schema.Message{Role: schema.RoleUser, Content: "hi"})

	var deltas []string
	var gotComplete bool
	for _, ev := range events {
		switch ev.Type {
		case schema.RuntimeEventTextDelta:
			deltas = append(deltas, ev.Delta)
		case schema.RuntimeEventTextComplete:
			gotComplete = true
			if ev.Content != "Hello" {
				t.Errorf("text-complete content = %q, want %q", ev.Content, "Hello")
			}
		default:
			t.Errorf("unexpected event type %s", ev.Type)
		}
	}
	if !gotComplete {
		t.Fatal("expected a text-complete event")
	}
	joined := ""
	for _, d := range deltas {
		joined += d
	}
	if joined != "Hello" {
		t.Errorf("joined deltas = %q, want %q", joined, "Hello")
	}
}

// Single tool call, result fed back, then completion.
func TestProcessTurn_SingleToolCall(t *testing.T) {
	ag := agent.New("assistant", "Assistant", agent.WithTools(newEchoTool()))
	model := &fakeModel{steps: []agentcore.Message{
		toolCallMsg("call-1", "echo", map[string]any{"text": "x"}),
		textMsg("done"),
	}}
	h := newHarness(t, ag, model, newEchoTool())

	events := collectEvents(t, h.orch, "conv-2", "assistant", schema.Message{Role: schema.RoleUser, Content: "go"})

	seq := make([]schema.RuntimeEventType, 0, len(events))
	for _, ev := range events {
		seq = append(seq, ev.Type)
	}
	want := []schema.RuntimeEventType{
		schema.RuntimeEventToolCallStart,
		schema.RuntimeEventToolCallArgs,
		schema.RuntimeEventToolCallResult,
		schema.RuntimeEventTextDelta,
		schema.RuntimeEventTextDelta,
		schema.RuntimeEventTextComplete,
	}
	assertEventTypeSeq(t, seq, want)

	for _, ev := range events {
		if ev.Type == schema.RuntimeEventToolCallResult {
			if string(ev.Result) != `"x"` {
				t.Errorf("tool-call-result = %s, want %q", ev.Result, `"x"`)
			}
		}
		if ev.Type == schema.RuntimeEventTextComplete && ev.Content != "done" {
			t.Errorf("text-complete content = %q, want %q", ev.Content, "done")
		}
	}
}

// Approval-gated tool, approved: the call resumes once a decision lands.
func TestProcessTurn_ApprovalApproved(t *testing.T) {
	ag := agent.New("assistant", "Assistant", agent.WithTools(newUnsafeTool()))
	model := &fakeModel{steps: []agentcore.Message{
		toolCallMsg("call-1", "delete_everything", nil),
		textMsg("ok, deleted"),
	}}
	h := newHarness(t, ag, model, newUnsafeTool())

	done := runTurnAsync(h.orch, "conv-3", "assistant", schema.Message{Role: schema.RoleUser, Content: "please delete"})

	// Wait for the approval-required event to land, then approve it.
	deadline := time.After(2 * time.Second)
	for {
		if h.orch.Approvals.Pending("call-1") {
			break
		}
		select {
		case <-deadline:
			t.Fatal("approval slot for call-1 never appeared")
		case <-time.After(time.Millisecond):
		}
	}
	if !h.orch.Approvals.SubmitApproval("call-1", approval.Decision{Approved: true}) {
		t.Fatal("SubmitApproval returned false")
	}

	outcome := <-done
	if outcome.err != nil {
		t.Fatalf("ProcessTurn: %v", outcome.err)
	}
	events := outcome.events
	seq := make([]schema.RuntimeEventType, 0, len(events))
	for _, ev := range events {
		seq = append(seq, ev.Type)
	}
	want := []schema.RuntimeEventType{
		schema.RuntimeEventToolCallStart,
		schema.RuntimeEventToolCallArgs,
		schema.RuntimeEventApprovalRequired,
		schema.RuntimeEventToolCallResult,
		schema.RuntimeEventTextDelta,
		schema.RuntimeEventTextDelta,
		schema.RuntimeEventTextComplete,
	}
	assertEventTypeSeq(t, seq, want)
}

// Approval rejected: the call fails with USER_REJECTED and the turn goes on.
func TestProcessTurn_ApprovalRejected(t *testing.T) {
	ag := agent.New("assistant", "Assistant", agent.WithTools(newUnsafeTool()))
	model := &fakeModel{steps: []agentcore.Message{
		toolCallMsg("call-1", "delete_everything", nil),
		textMsg("ok, skipped"),
	}}
	h := newHarness(t, ag, model, newUnsafeTool())

	done := runTurnAsync(h.orch, "conv-4", "assistant", schema.Message{Role: schema.RoleUser, Content: "please delete"})

	deadline := time.After(2 * time.Second)
	for {
		if h.orch.Approvals.Pending("call-1") {
			break
		}
		select {
		case <-deadline:
			t.Fatal("approval slot for call-1 never appeared")
		case <-time.After(time.Millisecond):
		}
	}
	h.orch.Approvals.SubmitApproval("call-1", approval.Decision{Approved: false, Reason: "no"})

	outcome := <-done
	if outcome.err != nil {
		t.Fatalf("ProcessTurn: %v", outcome.err)
	}
	events := outcome.events
	var sawRejected bool
	for _, ev := range events {
		if ev.Type == schema.RuntimeEventToolCallError {
			sawRejected = true
			if ev.Code != schema.CodeUserRejected || ev.Error != "no" {
				t.Errorf("tool-call-error = %+v, want code=%s error=no", ev, schema.CodeUserRejected)
			}
		}
		if ev.Type == schema.RuntimeEventToolCallResult {
			t.Error("rejected approval must not produce a tool-call-result")
		}
	}
	if !sawRejected {
		t.Fatal("expected a tool-call-error with USER_REJECTED")
	}
	last := events[len(events)-1]
	if last.Type != schema.RuntimeEventTextComplete || last.Content != "ok, skipped" {
		t.Errorf("final event = %+v, want text-complete \"ok, skipped\"", last)
	}
}

// Handoff from agent A to agent B, finishing the turn under B.
func TestProcessTurn_Handoff(t *testing.T) {
	agentA := agent.New("A", "Agent A", agent.WithCanHandoffTo("B"))
	agentB := agent.New("B", "Agent B")

	modelA := &fakeModel{steps: []agentcore.Message{
		toolCallMsg("call-1", handoff.ToolName("B"), map[string]any{"reason": "needs B"}),
	}}
	modelB := &fakeModel{steps: []agentcore.Message{textMsg("handled by B")}}

	store := runtime.NewStore()
	coord := approval.NewCoordinator()
	registry := tools.NewRegistry()

	adapterA := &llm.Adapter{Model: modelA, Provider: "fake"}
	adapterB := &llm.Adapter{Model: modelB, Provider: "fake"}
	bindings := map[string]Binding{
		"A": {Agent: agentA, Adapter: adapterA},
		"B": {Agent: agentB, Adapter: adapterB},
	}
	resolver := Resolver(func(agentID string) (Binding, bool) {
		b, ok := bindings[agentID]
		return b, ok
	})

	orch := New(store, coord, registry, resolver, Config{})

	var events []schema.RuntimeEvent
	err := orch.ProcessTurn(context.Background(), "conv-5", "A", schema.Message{Role: schema.RoleUser, Content: "route me"}, func(ev schema.RuntimeEvent) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}

	var sawHandoff bool
	for i, ev := range events {
		if ev.Type == schema.RuntimeEventAgentHandoff {
			sawHandoff = true
			if ev.From != "A" || ev.To != "B" || ev.Reason != "needs B" {
				t.Errorf("agent-handoff = %+v, want from=A to=B reason=\"needs B\"", ev)
			}
			// everything after the handoff in this turn belongs to B.
			for _, later := range events[i+1:] {
				if later.Type == schema.RuntimeEventToolCallStart && later.AgentID != "B" {
					t.Errorf("tool-call-start after handoff carries agentId %q, want B", later.AgentID)
				}
			}
		}
	}
	if !sawHandoff {
		t.Fatal("expected an agent-handoff event")
	}

	last := events[len(events)-1]
	if last.Type != schema.RuntimeEventTextComplete || last.Content != "handled by B" {
		t.Errorf("final event = %+v, want text-complete \"handled by B\"", last)
	}

	cs, ok := store.Get("conv-5")
	if !ok {
		t.Fatal("conversation state not found")
	}
	if cs.CurrentAgentID() != "B" {
		t.Errorf("CurrentAgentID = %s, want B", cs.CurrentAgentID())
	}
}

// A handoff ends its assistant step immediately: tool calls scripted after
// it in the same step never run, and every later tool-call-start carries
// the receiving agent's id.
func TestProcessTurn_HandoffAbandonsRemainingCalls(t *testing.T) {
	agentA := agent.New("A", "Agent A", agent.WithCanHandoffTo("B"), agent.WithTools(newEchoTool()))
	agentB := agent.New("B", "Agent B", agent.WithTools(newEchoTool()))

	handoffArgs, _ := json.Marshal(map[string]any{"reason": "needs B"})
	echoArgs, _ := json.Marshal(map[string]any{"text": "leftover"})
	stepA := agentcore.Message{
		Role: agentcore.RoleAssistant,
		Content: []agentcore.ContentBlock{
			agentcore.ToolCallBlock(agentcore.ToolCall{ID: "call-1", Name: handoff.ToolName("B"), Args: handoffArgs}),
			agentcore.ToolCallBlock(agentcore.ToolCall{ID: "call-2", Name: "echo", Args: echoArgs}),
		},
	}
	modelA := &fakeModel{steps: []agentcore.Message{stepA}}
	modelB := &fakeModel{steps: []agentcore.Message{
		toolCallMsg("call-3", "echo", map[string]any{"text": "from B"}),
		textMsg("done"),
	}}

	store := runtime.NewStore()
	coord := approval.NewCoordinator()
	registry := tools.NewRegistry()
	_ = registry.Register(newEchoTool())

	bindings := map[string]Binding{
		"A": {Agent: agentA, Adapter: &llm.Adapter{Model: modelA, Provider: "fake"}},
		"B": {Agent: agentB, Adapter: &llm.Adapter{Model: modelB, Provider: "fake"}},
	}
	orch := New(store, coord, registry, func(agentID string) (Binding, bool) {
		b, ok := bindings[agentID]
		return b, ok
	}, Config{})

	var events []schema.RuntimeEvent
	err := orch.ProcessTurn(context.Background(), "conv-5b", "A", schema.Message{Role: schema.RoleUser, Content: "route me"}, func(ev schema.RuntimeEvent) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}

	handoffAt := -1
	for i, ev := range events {
		if ev.Type == schema.RuntimeEventAgentHandoff {
			handoffAt = i
		}
		if ev.ToolCallID == "call-2" {
			t.Errorf("abandoned call-2 produced event %+v", ev)
		}
	}
	if handoffAt < 0 {
		t.Fatal("expected an agent-handoff event")
	}
	for _, ev := range events[handoffAt+1:] {
		if ev.Type == schema.RuntimeEventToolCallStart && ev.AgentID != "B" {
			t.Errorf("tool-call-start after handoff carries agentId %q, want B", ev.AgentID)
		}
	}
	if last := events[len(events)-1]; last.Type != schema.RuntimeEventTextComplete {
		t.Errorf("final event = %+v, want text-complete", last)
	}
}

// Iteration cap: a model that never stops calling tools ends the turn
// with MAX_ITERATIONS_EXCEEDED.
func TestProcessTurn_MaxIterationsExceeded(t *testing.T) {
	ag := agent.New("assistant", "Assistant", agent.WithTools(newEchoTool()))
	// The model calls the tool on every step, never completing.
	steps := make([]agentcore.Message, 0, 5)
	for i := 0; i < 5; i++ {
		steps = append(steps, toolCallMsg("call", "echo", map[string]any{"text": "x"}))
	}
	model := &fakeModel{steps: steps}
	h := newHarness(t, ag, model, newEchoTool())
	h.orch.Config.MaxTurnIterations = 2

	var events []schema.RuntimeEvent
	err := h.orch.ProcessTurn(context.Background(), "conv-6", "assistant", schema.Message{Role: schema.RoleUser, Content: "go"}, func(ev schema.RuntimeEvent) {
		events = append(events, ev)
	})
	if err == nil {
		t.Fatal("expected ProcessTurn to return an error when the iteration cap is hit")
	}

	last := events[len(events)-1]
	if last.Type != schema.RuntimeEventError || last.Code != schema.CodeMaxIterationsExceed {
		t.Errorf("final event = %+v, want error{code=%s}", last, schema.CodeMaxIterationsExceed)
	}
}

// An agent's own declared iteration cap is enforced even when
// the orchestrator's cumulative Config.MaxTurnIterations cap is looser.
func TestProcessTurn_AgentMaxIterationsExceeded(t *testing.T) {
	ag := agent.New("assistant", "Assistant", agent.WithTools(newEchoTool()), agent.WithMaxIterations(2))
	steps := make([]agentcore.Message, 0, 5)
	for i := 0; i < 5; i++ {
		steps = append(steps, toolCallMsg("call", "echo", map[string]any{"text": "x"}))
	}
	model := &fakeModel{steps: steps}
	h := newHarness(t, ag, model, newEchoTool())
	h.orch.Config.MaxTurnIterations = 10

	var events []schema.RuntimeEvent
	err := h.orch.ProcessTurn(context.Background(), "conv-6b", "assistant", schema.Message{Role: schema.RoleUser, Content: "go"}, func(ev schema.RuntimeEvent) {
		events = append(events, ev)
	})
	if err == nil {
		t.Fatal("expected ProcessTurn to return an error when the agent's own iteration cap is hit")
	}

	last := events[len(events)-1]
	if last.Type != schema.RuntimeEventError || last.Code != schema.CodeMaxIterationsExceed {
		t.Errorf("final event = %+v, want error{code=%s}", last, schema.CodeMaxIterationsExceed)
	}
}

// CONVERSATION_BUSY: a second turn submitted while one is in flight fails fast.
func TestProcessTurn_ConversationBusy(t *testing.T) {
	ag := agent.New("assistant", "Assistant")
	block := make(chan struct{})
	model := &blockingModel{release: block}
	h := newHarness(t, ag, model)

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_ = h.orch.ProcessTurn(context.Background(), "conv-7", "assistant", schema.Message{Role: schema.RoleUser, Content: "hi"}, func(schema.RuntimeEvent) {})
	}()
	time.Sleep(20 * time.Millisecond) // let the first turn acquire the lock

	var events []schema.RuntimeEvent
	err := h.orch.ProcessTurn(context.Background(), "conv-7", "assistant", schema.Message{Role: schema.RoleUser, Content: "again"}, func(ev schema.RuntimeEvent) {
		events = append(events, ev)
	})
	if err == nil {
		t.Fatal("expected the second concurrent ProcessTurn call to fail")
	}
	if len(events) != 1 || events[0].Code != schema.CodeConversationBusy {
		t.Errorf("events = %+v, want a single CONVERSATION_BUSY error", events)
	}

	close(block)
	<-firstDone
}

// blockingModel blocks GenerateStream until release is closed, used to hold
// a turn in flight for the CONVERSATION_BUSY test.
type blockingModel struct{ release <-chan struct{} }

func (b *blockingModel) Generate(ctx context.Context, messages []llm.Message, toolSpecs []llm.ToolSpec, opts ...llm.CallOption) (*llm.LLMResponse, error) {
	panic("not used")
}
func (b *blockingModel) SupportsTools() bool { return true }
func (b *blockingModel) GenerateStream(ctx context.Context, messages []llm.Message, toolSpecs []llm.ToolSpec, opts ...llm.CallOption) (<-chan llm.StreamEvent, error) {
	ch := make(chan llm.StreamEvent, 1)
	go func() {
		defer close(ch)
		<-b.release
		ch <- llm.StreamEvent{Type: llm.StreamEventDone, Message: textMsg("late")}
	}()
	return ch, nil
}

var _ llm.ChatModel = (*blockingModel)(nil)

func assertEventTypeSeq(t *testing.T, got, want []schema.RuntimeEventType) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("event sequence length = %d, want %d\ngot:  %v\nwant: %v", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event[%d] = %s, want %s\ngot:  %v\nwant: %v", i, got[i], want[i], got, want)
		}
	}
}
