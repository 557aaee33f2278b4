package repository

import (
	"context"
	"time"

	"github.com/chatcommerce/gateway/internal/domain/entity"
)

// ConversationRepository 会话仓储接口
type ConversationRepository interface {
	// FindOrCreate returns the conversation for (channelID, senderID),
	// creating it on first contact.
	FindOrCreate(ctx context.Context, channelID, senderID string) (*entity.Conversation, error)

	// FindByID 根据ID查找会话
	FindByID(ctx context.Context, id string) (*entity.Conversation, error)

	// Touch 更新最后活跃时间
	Touch(ctx context.Context, id string, at time.Time) error
}
