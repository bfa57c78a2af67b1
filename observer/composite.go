package observer

import (
	"context"
	"encoding/json"

	"github.com/voocel/mas/schema"
)

// CompositeObserver fans every call out to a list of observers, so a turn
// can be logged and metriced and traced by independently-configured
// observers without the orchestrator knowing about any of them.
type CompositeObserver struct {
	items []Observer
}

// NewCompositeObserver creates a composite observer over items, dropping nils.
func NewCompositeObserver(items ...Observer) *CompositeObserver {
	return &CompositeObserver{items: filterObservers(items)}
}

// Add appends more observers.
func (o *CompositeObserver) Add(items ...Observer) {
	o.items = append(o.items, filterObservers(items)...)
}

func (o *CompositeObserver) OnEvent(ctx context.Context, conversationID string, event schema.RuntimeEvent) {
	for _, obs := range o.items {
		obs.OnEvent(ctx, conversationID, event)
	}
}

func (o *CompositeObserver) OnTurnStart(ctx context.Context, conversationID, agentID string) {
	for _, obs := range o.items {
		obs.OnTurnStart(ctx, conversationID, agentID)
	}
}

func (o *CompositeObserver) OnTurnEnd(ctx context.Context, conversationID string, err error) {
	for _, obs := range o.items {
		obs.OnTurnEnd(ctx, conversationID, err)
	}
}

func (o *CompositeObserver) OnToolCall(ctx context.Context, conversationID, toolName string, args json.RawMessage) {
	for _, obs := range o.items {
		obs.OnToolCall(ctx, conversationID, toolName, args)
	}
}

func (o *CompositeObserver) OnToolResult(ctx context.Context, conversationID, toolName string, result json.RawMessage, err error) {
	for _, obs := range o.items {
		obs.OnToolResult(ctx, conversationID, toolName, result, err)
	}
}

func (o *CompositeObserver) OnApprovalRequired(ctx context.Context, conversationID, toolCallID, toolName string) {
	for _, obs := range o.items {
		obs.OnApprovalRequired(ctx, conversationID, toolCallID, toolName)
	}
}

func (o *CompositeObserver) OnHandoff(ctx context.Context, conversationID string, rec schema.HandoffRecord) {
	for _, obs := range o.items {
		obs.OnHandoff(ctx, conversationID, rec)
	}
}

func (o *CompositeObserver) OnError(ctx context.Context, conversationID string, err error) {
	for _, obs := range o.items {
		obs.OnError(ctx, conversationID, err)
	}
}

func filterObservers(items []Observer) []Observer {
	result := make([]Observer, 0, len(items))
	for _, item := range items {
		if item != nil {
			result = append(result, item)
		}
	}
	return result
}

var _ Observer = (*CompositeObserver)(nil)
