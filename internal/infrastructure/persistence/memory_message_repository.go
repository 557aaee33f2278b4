package persistence

import (
	"context"
	"sync"

	"github.com/chatcommerce/gateway/internal/domain/entity"
	"github.com/chatcommerce/gateway/internal/domain/repository"
)

// MemoryMessageRepository 内存实现的消息仓储（用于开发/测试）
type MemoryMessageRepository struct {
	mu sync.RWMutex
	// 会话ID到消息列表的映射, 保持写入顺序
	convMessages map[string][]*entity.Message
}

// NewMemoryMessageRepository 创建内存消息仓储
func NewMemoryMessageRepository() repository.MessageRepository {
	return &MemoryMessageRepository{
		convMessages: make(map[string][]*entity.Message),
	}
}

// Save 保存消息
func (r *MemoryMessageRepository) Save(ctx context.Context, message *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	convID := message.ConversationID()
	r.convMessages[convID] = append(r.convMessages[convID], message)
	return nil
}

// FindByConversationID 根据会话ID查找消息列表
func (r *MemoryMessageRepository) FindByConversationID(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.convMessages[conversationID]
	total := len(all)
	if offset >= total {
		return []*entity.Message{}, nil
	}

	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	messages := make([]*entity.Message, end-offset)
	copy(messages, all[offset:end])
	return messages, nil
}

// Count 统计会话中的消息数量
func (r *MemoryMessageRepository) Count(ctx context.Context, conversationID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.convMessages[conversationID])), nil
}
