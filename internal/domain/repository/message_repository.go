package repository

import (
	"context"

	"github.com/chatcommerce/gateway/internal/domain/entity"
)

// MessageRepository 消息仓储接口
type MessageRepository interface {
	// Save 保存消息
	Save(ctx context.Context, message *entity.Message) error

	// FindByConversationID 按创建顺序返回会话消息; limit <= 0 表示不限
	FindByConversationID(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, error)

	// Count 统计会话中的消息数量
	Count(ctx context.Context, conversationID string) (int64, error)
}
