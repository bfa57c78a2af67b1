package runtime

import (
	"context"
	"testing"
)

func TestTurnContextRoundTrip(t *testing.T) {
	base := context.Background()
	if _, ok := TurnContextFrom(base); ok {
		t.Fatal("bare context should carry no TurnContext")
	}

	tc := TurnContext{
		ConversationID: "conv-1",
		UserID:         "user-1",
		AgentID:        "triage",
		Frontend:       map[string]interface{}{"locale": "en"},
	}
	ctx := WithTurnContext(base, tc)

	got, ok := TurnContextFrom(ctx)
	if !ok {
		t.Fatal("TurnContextFrom: not found")
	}
	if got.ConversationID != tc.ConversationID || got.UserID != tc.UserID || got.AgentID != tc.AgentID {
		t.Errorf("got %+v, want %+v", got, tc)
	}
	if got.Frontend["locale"] != "en" {
		t.Errorf("frontend context dropped: %+v", got.Frontend)
	}

	// A later handoff overwrites the agent id for nested work.
	tc.AgentID = "billing"
	inner, _ := TurnContextFrom(WithTurnContext(ctx, tc))
	if inner.AgentID != "billing" {
		t.Errorf("inner AgentID = %q, want billing", inner.AgentID)
	}
	if outer, _ := TurnContextFrom(ctx); outer.AgentID != "triage" {
		t.Errorf("outer AgentID mutated to %q", outer.AgentID)
	}
}
