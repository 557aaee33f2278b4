package channel

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/chatcommerce/gateway/internal/domain/entity"
	"github.com/chatcommerce/gateway/internal/domain/repository"
	"github.com/chatcommerce/gateway/internal/domain/service"
	"github.com/chatcommerce/gateway/internal/domain/valueobject"
	"github.com/chatcommerce/gateway/pkg/errors"
)

// Sender delivers text on one channel type using that channel's credentials.
type Sender interface {
	Send(ctx context.Context, ch *entity.Channel, recipientID, text string) error
}

// Router resolves a channel id to its credentials row and hands the text to
// the sender registered for the channel type.
type Router struct {
	channels repository.ChannelRepository
	mu       sync.RWMutex
	senders  map[valueobject.ChannelType]Sender
	logger   *zap.Logger
}

// NewRouter 创建渠道路由
func NewRouter(channels repository.ChannelRepository, logger *zap.Logger) *Router {
	return &Router{
		channels: channels,
		senders:  make(map[valueobject.ChannelType]Sender),
		logger:   logger.With(zap.String("component", "channel-router")),
	}
}

var _ service.DeliveryChannel = (*Router)(nil)

// Register 注册渠道类型的发送器
func (r *Router) Register(t valueobject.ChannelType, s Sender) {
	r.mu.Lock()
	r.senders[t] = s
	r.mu.Unlock()
}

// Send implements service.DeliveryChannel.
func (r *Router) Send(ctx context.Context, channelID, recipientID, text string) error {
	ch, err := r.channels.FindByID(ctx, channelID)
	if err != nil {
		return errors.Wrap(errors.CodeDeliveryFailed, fmt.Sprintf("resolve channel %q", channelID), err)
	}
	if !ch.Enabled {
		return errors.New(errors.CodeDeliveryFailed, fmt.Sprintf("channel %q is disabled", channelID))
	}

	r.mu.RLock()
	s, ok := r.senders[ch.Type]
	r.mu.RUnlock()
	if !ok {
		return errors.New(errors.CodeDeliveryFailed, fmt.Sprintf("no sender for channel type %q", ch.Type))
	}

	if err := s.Send(ctx, ch, recipientID, text); err != nil {
		if errors.CodeOf(err) == "" {
			err = errors.Wrap(errors.CodeDeliveryFailed, "send failed", err)
		}
		return err
	}
	r.logger.Debug("Sent",
		zap.String("channel_id", channelID),
		zap.String("channel_type", string(ch.Type)),
		zap.String("recipient_id", recipientID),
		zap.Int("chars", len([]rune(text))),
	)
	return nil
}
