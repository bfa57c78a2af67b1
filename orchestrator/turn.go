// Package orchestrator implements the agent runtime's top-level loop: the
// stream -> tool-exec -> feed-result-back -> stream state machine that
// drives one conversation turn to completion, built on runtime.Store for
// per-conversation state, approval.Coordinator for human-in-the-loop gates,
// handoff for agent-to-agent transfer, and tools.ExecuteWithGuards for
// bounded tool dispatch.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/voocel/mas/agent"
	"github.com/voocel/mas/approval"
	"github.com/voocel/mas/handoff"
	"github.com/voocel/mas/llm"
	"github.com/voocel/mas/observer"
	"github.com/voocel/mas/retry"
	"github.com/voocel/mas/runtime"
	"github.com/voocel/mas/schema"
	"github.com/voocel/mas/tools"
)

// Config tunes a turn's resource limits and timeouts. Zero-value fields fall
// back to DefaultConfig's values.
type Config struct {
	RequestTimeout     time.Duration // per model call, default 30s
	ToolTimeout        time.Duration // per tool call, default 30s
	ApprovalTimeout    time.Duration // 0 = unbounded, the default
	MaxTurnIterations  int           // cumulative tool calls across the whole turn, default 10
	MaxAgentsPerTurn   int           // distinct agents a turn may pass through via handoff, default 5
	MaxToolResultBytes int           // 0 = unbounded
	RetryPolicy        retry.Policy  // backoff policy wrapping each model call
}

// DefaultConfig is the tuning a turn runs under when the caller doesn't
// override anything.
var DefaultConfig = Config{
	RequestTimeout:    30 * time.Second,
	ToolTimeout:       30 * time.Second,
	ApprovalTimeout:   0,
	MaxTurnIterations: 10,
	MaxAgentsPerTurn:  5,
	RetryPolicy:       retry.DefaultPolicy,
}

func (c Config) normalize() Config {
	d := DefaultConfig
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = d.ToolTimeout
	}
	if c.MaxTurnIterations <= 0 {
		c.MaxTurnIterations = d.MaxTurnIterations
	}
	if c.MaxAgentsPerTurn <= 0 {
		c.MaxAgentsPerTurn = d.MaxAgentsPerTurn
	}
	if c.RetryPolicy == (retry.Policy{}) {
		c.RetryPolicy = d.RetryPolicy
	}
	return c
}

// Binding is the resolved agent+model pair a turn runs against.
type Binding struct {
	Agent   *agent.Agent
	Adapter *llm.Adapter
}

// Resolver looks up the Binding for an agent id, e.g. backed by a static
// map or a registry keyed by agent id.
type Resolver func(agentID string) (Binding, bool)

// ApprovalPolicy decides whether a tool call must wait for human approval
// before it runs. The default policy, RequiresApprovalByCapability, gates
// any tool declaring tools.CapabilityUnsafe.
type ApprovalPolicy func(tool tools.Tool, call schema.ToolCall) bool

// RequiresApprovalByCapability is the default ApprovalPolicy: any tool that
// declares CapabilityUnsafe requires approval, everything else runs
// immediately.
func RequiresApprovalByCapability(tool tools.Tool, _ schema.ToolCall) bool {
	for _, cap := range tool.Capabilities() {
		if cap == tools.CapabilityUnsafe {
			return true
		}
	}
	return false
}

// Orchestrator drives conversation turns end to end.
type Orchestrator struct {
	Config        Config
	Store         *runtime.Store
	Approvals     *approval.Coordinator
	Registry      *tools.Registry
	Resolver      Resolver
	NeedsApproval ApprovalPolicy
	FrontendTools []tools.Tool
	Observer      observer.Observer
	Tracer        observer.Tracer // optional; nil disables span tracing
}

// New builds an Orchestrator. registry must contain every tool any bound
// agent (or the handoff tools synthesized for it) might call.
func New(store *runtime.Store, approvals *approval.Coordinator, registry *tools.Registry, resolver Resolver, cfg Config) *Orchestrator {
	return &Orchestrator{
		Config:        cfg.normalize(),
		Store:         store,
		Approvals:     approvals,
		Registry:      registry,
		Resolver:      resolver,
		NeedsApproval: RequiresApprovalByCapability,
		Observer:      observer.NoopObserver{},
	}
}

// ProcessTurn runs one user turn on conversationID to completion: appending
// userMsg to history, driving the bound agent's model through as many
// stream/tool-exec rounds as it needs (including any handoffs), and
// emitting every schema.RuntimeEvent produced along the way via emit. It
// returns once the turn ends, successfully or not. A turn-fatal failure is
// emitted as an error event and also returned; a failed append to the
// conversation history is returned without an event and reported to
// Observer.OnError instead.
func (o *Orchestrator) ProcessTurn(ctx context.Context, conversationID, initialAgentID string, userMsg schema.Message, emit func(schema.RuntimeEvent)) (err error) {
	cs := o.Store.GetOrCreate(conversationID, initialAgentID)

	release, ok := cs.TryBeginTurn()
	if !ok {
		emit(schema.ErrorEvent("a turn is already in progress for this conversation", schema.CodeConversationBusy))
		return fmt.Errorf("orchestrator: conversation %s busy", conversationID)
	}
	defer release()
	defer func() { o.Observer.OnTurnEnd(ctx, conversationID, err) }()

	if userMsg.Timestamp.IsZero() {
		userMsg.Timestamp = time.Now()
	}
	if err := runtime.AppendMessage(ctx, cs, userMsg); err != nil {
		err = fmt.Errorf("orchestrator: append user message: %w", err)
		o.Observer.OnError(ctx, conversationID, err)
		return err
	}
	o.Observer.OnTurnStart(ctx, conversationID, cs.CurrentAgentID())

	wrappedEmit := func(ev schema.RuntimeEvent) {
		o.Observer.OnEvent(ctx, conversationID, ev)
		emit(ev)
	}

	agentsSeen := map[string]bool{cs.CurrentAgentID(): true}
	iterations := 0
	perAgentIterations := map[string]int{}
	pending := &pendingApprovals{}

	for {
		if err := ctx.Err(); err != nil {
			o.cancelOutstanding(pending)
			wrappedEmit(schema.ErrorEvent(err.Error(), schema.CodeCancelled))
			return err
		}

		agentID := cs.CurrentAgentID()
		binding, ok := o.Resolver(agentID)
		if !ok {
			err := fmt.Errorf("orchestrator: no binding for agent %q", agentID)
			wrappedEmit(schema.ErrorEvent(err.Error(), schema.CodeProviderError))
			return err
		}

		handoffTools := handoff.GenerateTools(binding.Agent.CanHandoffTo(), o.handoffLookup)
		effective, err := tools.EffectiveSet(binding.Agent.Tools(), handoffTools, o.FrontendTools)
		if err != nil {
			wrappedEmit(schema.ErrorEvent(err.Error(), schema.CodeProviderError))
			return err
		}
		for _, t := range effective {
			if !o.Registry.Has(t.Name()) {
				_ = o.Registry.Register(t)
			}
		}

		history, err := cs.History().GetConversationContext(ctx)
		if err != nil {
			wrappedEmit(schema.ErrorEvent(err.Error(), schema.CodeProviderError))
			return err
		}

		tc, _ := runtime.TurnContextFrom(ctx)
		tc.ConversationID = conversationID
		tc.AgentID = agentID
		iterCtx := runtime.WithTurnContext(ctx, tc)

		promptCtx := agent.SystemPromptContext{ConversationID: conversationID, AgentID: agentID, UserID: tc.UserID}
		modelMessages := toModelMessages(binding.Agent.ResolveSystemPrompt(promptCtx), history)
		toolSpecs := toToolSpecs(effective)

		assistantMsg, err := o.streamOnce(iterCtx, binding.Adapter, modelMessages, toolSpecs, wrappedEmit)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				o.cancelOutstanding(pending)
				wrappedEmit(schema.ErrorEvent(ctxErr.Error(), schema.CodeCancelled))
				return ctxErr
			}
			wrappedEmit(schema.ErrorEvent(err.Error(), schema.CodeProviderError))
			return err
		}
		assistantMsg.AgentID = agentID
		assistantMsg.Timestamp = time.Now()
		if err := runtime.AppendMessage(ctx, cs, assistantMsg); err != nil {
			err = fmt.Errorf("orchestrator: append assistant message: %w", err)
			o.Observer.OnError(ctx, conversationID, err)
			return err
		}

		if !assistantMsg.HasToolCalls() {
			return nil
		}

		if err := o.dispatchToolCalls(iterCtx, cs, agentID, binding.Agent.MaxIterations(), assistantMsg.ToolCalls, &iterations, perAgentIterations, agentsSeen, pending, wrappedEmit); err != nil {
			return err
		}
	}
}

// handoffLookup adapts the orchestrator's agent Resolver into a
// handoff.TargetLookup, so synthesized handoff_to_<agentId> tools are
// worded from the target agent's own name/description.
func (o *Orchestrator) handoffLookup(agentID string) (handoff.TargetInfo, bool) {
	binding, ok := o.Resolver(agentID)
	if !ok {
		return handoff.TargetInfo{}, false
	}
	return handoff.TargetInfo{Name: binding.Agent.Name(), Description: binding.Agent.Description()}, true
}

// streamOnce runs a single model call with the configured timeout and
// retry policy, emitting streaming events as they arrive.
func (o *Orchestrator) streamOnce(ctx context.Context, adapter *llm.Adapter, messages []llm.Message, toolSpecs []llm.ToolSpec, emit func(schema.RuntimeEvent)) (schema.Message, error) {
	reqCtx, cancel := retry.WithTimeout(ctx, o.Config.RequestTimeout)
	defer cancel()

	var endSpan func(error)
	if o.Tracer != nil {
		reqCtx, endSpan = o.Tracer.StartSpan(reqCtx, "model.stream", map[string]string{"provider": adapter.Provider})
	}

	var result llm.Message
	err := retry.Do(reqCtx, o.Config.RetryPolicy, func(attemptCtx context.Context) error {
		msg, err := adapter.Stream(attemptCtx, messages, toolSpecs, emit)
		if err != nil {
			return err
		}
		result = msg
		return nil
	})
	if endSpan != nil {
		endSpan(err)
	}
	if err != nil {
		return schema.Message{}, err
	}
	return fromModelMessage(result), nil
}

// pendingApprovals tracks toolCallIds awaiting a decision within a single
// ProcessTurn call, so a cancelled turn can tear down exactly the approval
// slots it opened rather than reaching into unrelated conversations.
type pendingApprovals struct {
	mu  sync.Mutex
	ids []string
}

func (p *pendingApprovals) add(id string) {
	p.mu.Lock()
	p.ids = append(p.ids, id)
	p.mu.Unlock()
}

func (p *pendingApprovals) remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.ids {
		if existing == id {
			p.ids = append(p.ids[:i], p.ids[i+1:]...)
			return
		}
	}
}

// dispatchToolCalls executes an assistant step's tool calls in order. A
// handoff ends the dispatch immediately: any calls after it in the same
// step are abandoned, and the caller's next loop iteration re-streams
// under the agent the conversation now belongs to.
//
// agentMaxIterations is the current agent's own declared cap, checked
// per-agent in addition to the cumulative Config.MaxTurnIterations cap: the
// cumulative cap is the one enforced across handoffs, but an agent that
// declares its own tighter limit is still held to it.
func (o *Orchestrator) dispatchToolCalls(ctx context.Context, cs *runtime.ConversationState, agentID string, agentMaxIterations int, calls []schema.ToolCall, iterations *int, perAgentIterations map[string]int, agentsSeen map[string]bool, pending *pendingApprovals, emit func(schema.RuntimeEvent)) error {
	for _, call := range calls {
		// The counters advance per tool call, not per stream/tool-exec
		// cycle: a step carrying several calls burns through the caps
		// faster than one-call steps do. A strictly tighter bound than
		// per-cycle counting, so the cycle-level guarantee still holds.
		*iterations++
		perAgentIterations[agentID]++
		if *iterations > o.Config.MaxTurnIterations {
			err := fmt.Errorf("orchestrator: turn exceeded %d iterations", o.Config.MaxTurnIterations)
			emit(schema.ErrorEvent(err.Error(), schema.CodeMaxIterationsExceed))
			return err
		}
		if agentMaxIterations > 0 && perAgentIterations[agentID] > agentMaxIterations {
			err := fmt.Errorf("orchestrator: agent %q exceeded %d iterations", agentID, agentMaxIterations)
			emit(schema.ErrorEvent(err.Error(), schema.CodeMaxIterationsExceed))
			return err
		}

		emit(schema.ToolCallStart(call.ID, call.Name, agentID))
		emit(schema.ToolCallArgs(call.ID, call.Args))

		tool, exists := o.Registry.Get(call.Name)
		if !exists {
			emit(schema.ToolCallError(call.ID, "tool not found", schema.CodeToolNotFound))
			o.appendToolResult(ctx, cs, call.ID, nil, "tool not found")
			continue
		}

		if o.NeedsApproval != nil && o.NeedsApproval(tool, call) {
			if err := o.Approvals.RequestApproval(call.ID); err != nil && err != approval.ErrAlreadyPending {
				emit(schema.ToolCallError(call.ID, err.Error(), schema.CodeProviderError))
				o.appendToolResult(ctx, cs, call.ID, nil, err.Error())
				continue
			}
			emit(schema.ApprovalRequired(call.ID, call.Name, agentID, call.Args))
			o.Observer.OnApprovalRequired(ctx, cs.ID, call.ID, call.Name)
			pending.add(call.ID)

			decision, err := o.Approvals.WaitForApproval(ctx, call.ID, o.Config.ApprovalTimeout)
			pending.remove(call.ID)
			if err != nil {
				code := schema.CodeApprovalTimeout
				if apErr, ok := err.(*approval.Error); ok {
					code = apErr.Code
				}
				emit(schema.ToolCallError(call.ID, err.Error(), code))
				o.appendToolResult(ctx, cs, call.ID, nil, err.Error())
				continue
			}
			if !decision.Approved {
				emit(schema.ToolCallError(call.ID, decision.Reason, schema.CodeUserRejected))
				o.appendToolResult(ctx, cs, call.ID, nil, "rejected: "+decision.Reason)
				continue
			}
			if decision.EditedArgs != nil {
				call.Args = decision.EditedArgs
			}
		}

		if validator, ok := tool.(interface {
			ValidateInput(json.RawMessage) error
		}); ok {
			if err := validator.ValidateInput(call.Args); err != nil {
				emit(schema.ToolCallError(call.ID, err.Error(), schema.CodeToolInputInvalid))
				o.appendToolResult(ctx, cs, call.ID, nil, err.Error())
				continue
			}
		}

		toolCtx := ctx
		var endSpan func(error)
		if o.Tracer != nil {
			toolCtx, endSpan = o.Tracer.StartSpan(ctx, "tool.execute", map[string]string{"tool": call.Name, "agent": agentID})
		}
		o.Observer.OnToolCall(ctx, cs.ID, call.Name, call.Args)
		guardCfg := tools.GuardConfig{Timeout: o.Config.ToolTimeout, MaxResultBytes: o.Config.MaxToolResultBytes}
		result, err := tools.ExecuteWithGuards(toolCtx, o.Registry, call, guardCfg)
		if endSpan != nil {
			endSpan(err)
		}
		o.Observer.OnToolResult(ctx, cs.ID, call.Name, result.Result, err)
		if err != nil {
			code := classifyToolError(err)
			emit(schema.ToolCallError(call.ID, err.Error(), code))
			if len(result.Result) > 0 {
				// Guard layer substituted a recoverable payload (e.g. the
				// truncation marker for an oversized result); the model sees
				// that instead of a bare error string.
				o.appendToolResult(ctx, cs, call.ID, result.Result, "")
			} else {
				o.appendToolResult(ctx, cs, call.ID, nil, err.Error())
			}
			continue
		}

		if rec := handoff.ParseResult(result.Result); rec != nil {
			now := time.Now()
			record := schema.NewHandoffRecord(agentID, rec, now)
			if !agentsSeen[record.To] {
				agentsSeen[record.To] = true
			}
			if len(agentsSeen) > o.Config.MaxAgentsPerTurn {
				err := fmt.Errorf("orchestrator: turn exceeded %d agents", o.Config.MaxAgentsPerTurn)
				emit(schema.ErrorEvent(err.Error(), schema.CodeMaxIterationsExceed))
				return err
			}
			cs.RecordHandoff(record)
			// A handoff marker never surfaces as tool-call-result; the turn
			// emits agent-handoff instead and acknowledges the transfer back
			// to the model as a synthetic tool message. Any tool calls left
			// in this step now belong to an agent that gave up the
			// conversation, so dispatch stops here and the caller
			// re-streams under the new agent.
			emit(schema.AgentHandoff(record.From, record.To, record.Reason, record.Context))
			o.Observer.OnHandoff(ctx, cs.ID, record)
			ack, _ := json.Marshal(fmt.Sprintf("handed off to %s: %s", record.To, record.Reason))
			o.appendToolResult(ctx, cs, call.ID, ack, "")
			return nil
		}

		emit(schema.ToolCallResult(call.ID, result.Result))
		o.appendToolResult(ctx, cs, call.ID, result.Result, result.Error)
	}

	return nil
}

func (o *Orchestrator) appendToolResult(ctx context.Context, cs *runtime.ConversationState, toolCallID string, result json.RawMessage, errMsg string) {
	msg := schema.Message{
		Role:      schema.RoleTool,
		Timestamp: time.Now(),
		Metadata: map[string]interface{}{
			"tool_call_id":    toolCallID,
			"tool_call_error": errMsg != "",
		},
	}
	if errMsg != "" {
		msg.Content = errMsg
	} else {
		msg.Content = string(result)
	}
	_ = runtime.AppendMessage(ctx, cs, msg)
}

func (o *Orchestrator) cancelOutstanding(pending *pendingApprovals) {
	pending.mu.Lock()
	ids := append([]string(nil), pending.ids...)
	pending.mu.Unlock()
	for _, id := range ids {
		o.Approvals.Cancel(id)
	}
}

func classifyToolError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, schema.ErrMCPTimeout) {
		return schema.CodeMCPTimeout
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return schema.CodeToolTimeout
	}
	if errors.Is(err, schema.ErrToolNotFound) {
		return schema.CodeToolNotFound
	}
	if errors.Is(err, schema.ErrToolResultTooLarge) {
		return schema.CodeToolResultTooLarge
	}
	return schema.CodeToolInputInvalid
}
