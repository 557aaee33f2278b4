package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatcommerce/gateway/internal/domain/entity"
	"github.com/chatcommerce/gateway/internal/domain/repository"
	"github.com/chatcommerce/gateway/internal/domain/valueobject"
)

// DefaultDeliveryTimeout bounds one channel send.
const DefaultDeliveryTimeout = 15 * time.Second

// DeliveryChannel sends text to a recipient on a channel.
type DeliveryChannel interface {
	Send(ctx context.Context, channelID, recipientID, text string) error
}

// Delivery is one outbound reply.
type Delivery struct {
	ConversationID string
	ChannelID      string
	SenderID       string
	Text           string
}

// Dispatcher persists the assistant turn and relays it to the channel.
type Dispatcher struct {
	messages repository.MessageRepository
	channel  DeliveryChannel
	timeout  time.Duration
	events   EventSink
	logger   *zap.Logger
}

// NewDispatcher 创建投递器
func NewDispatcher(messages repository.MessageRepository, channel DeliveryChannel, timeout time.Duration, events EventSink, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	if events == nil {
		events = NopSink{}
	}
	return &Dispatcher{
		messages: messages,
		channel:  channel,
		timeout:  timeout,
		events:   events,
		logger:   logger.With(zap.String("component", "dispatcher")),
	}
}

// Deliver stores the reply, then sends it. A store failure is logged and the
// send still happens. A send failure is logged and published; nothing is
// rolled back. Reports whether the channel accepted the text.
func (d *Dispatcher) Deliver(ctx context.Context, del Delivery) bool {
	fields := []zap.Field{
		zap.String("sender_id", del.SenderID),
		zap.String("conversation_id", del.ConversationID),
		zap.String("channel_id", del.ChannelID),
	}

	msg, err := entity.NewMessage(uuid.NewString(), del.ConversationID, valueobject.RoleAssistant, del.Text, "")
	if err == nil {
		err = d.messages.Save(ctx, msg)
	}
	if err != nil {
		d.logger.Error("Failed to persist assistant message",
			append(fields, zap.String("stage", "persist_reply"), zap.Error(err))...)
	}

	if d.channel == nil {
		d.logger.Warn("No delivery channel configured", fields...)
		return false
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.channel.Send(sendCtx, del.ChannelID, del.SenderID, del.Text); err != nil {
		d.logger.Error("Delivery failed",
			append(fields, zap.String("stage", "deliver"), zap.Error(err))...)
		d.events.Emit(ctx, EventDeliveryFailed, ReplyPayload{
			ConversationID: del.ConversationID,
			SenderID:       del.SenderID,
			ChannelID:      del.ChannelID,
			Stage:          "deliver",
			Error:          err.Error(),
		})
		return false
	}

	d.logger.Debug("Reply delivered", fields...)
	return true
}
