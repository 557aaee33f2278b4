package service

import "context"

// Domain event types
const (
	EventMessageReceived = "message.received"
	EventReplyDelivered  = "reply.delivered"
	EventReplyFailed     = "reply.failed"
	EventOrderCreated    = "order.created"
	EventDeliveryFailed  = "delivery.failed"
)

// EventSink receives domain events. Implementations must not block.
type EventSink interface {
	Emit(ctx context.Context, eventType string, payload any)
}

// NopSink discards events.
type NopSink struct{}

// Emit implements EventSink.
func (NopSink) Emit(context.Context, string, any) {}

// OrderCreatedPayload 订单创建事件载荷
type OrderCreatedPayload struct {
	OrderNumber    string
	ConversationID string
	ProductName    string
	Quantity       int
	Total          float64
}

// ReplyPayload 回复事件载荷
type ReplyPayload struct {
	ConversationID string
	SenderID       string
	ChannelID      string
	Stage          string
	Error          string
}
