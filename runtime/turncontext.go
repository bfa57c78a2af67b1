package runtime

import "context"

// TurnContext is the per-turn identity a tool or dynamic system prompt may
// need while it runs: which conversation and user the call belongs to,
// which agent is currently driving it, and any opaque frontend-supplied
// context that arrived with the turn's input. The orchestrator threads it
// through the context.Context it hands every tool execution, so MCP-backed
// and local tools see the same thing without the tool interface widening.
type TurnContext struct {
	ConversationID string
	UserID         string
	AgentID        string
	Frontend       map[string]interface{}
}

type turnContextKey struct{}

// WithTurnContext returns a child context carrying tc.
func WithTurnContext(ctx context.Context, tc TurnContext) context.Context {
	return context.WithValue(ctx, turnContextKey{}, tc)
}

// TurnContextFrom extracts the TurnContext threaded by the orchestrator,
// ok=false if ctx was not produced by a turn.
func TurnContextFrom(ctx context.Context) (TurnContext, bool) {
	tc, ok := ctx.Value(turnContextKey{}).(TurnContext)
	return tc, ok
}
