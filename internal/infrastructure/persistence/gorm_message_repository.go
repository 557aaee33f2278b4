package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/chatcommerce/gateway/internal/domain/entity"
	"github.com/chatcommerce/gateway/internal/domain/repository"
	"github.com/chatcommerce/gateway/internal/domain/valueobject"
	"github.com/chatcommerce/gateway/internal/infrastructure/persistence/models"
	domainErrors "github.com/chatcommerce/gateway/pkg/errors"
)

// GormMessageRepository GORM 实现的消息仓储
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建 GORM 消息仓储
func NewGormMessageRepository(db *gorm.DB) repository.MessageRepository {
	return &GormMessageRepository{db: db}
}

// Save 保存消息 (append-only)
func (r *GormMessageRepository) Save(ctx context.Context, message *entity.Message) error {
	model := &models.MessageModel{
		ID:             message.ID(),
		ConversationID: message.ConversationID(),
		Role:           string(message.Role()),
		Text:           message.Text(),
		ImageURL:       message.ImageURL(),
		CreatedAt:      message.CreatedAt().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to save message", err)
	}
	return nil
}

// FindByConversationID 根据会话ID查找消息列表
func (r *GormMessageRepository) FindByConversationID(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, error) {
	var rows []models.MessageModel
	q := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at asc").
		Order("seq asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to find messages", err)
	}

	messages := make([]*entity.Message, 0, len(rows))
	for i := range rows {
		m := &rows[i]
		messages = append(messages, entity.ReconstructMessage(
			m.ID, m.ConversationID, valueobject.SenderRole(m.Role), m.Text, m.ImageURL, m.CreatedAt,
		))
	}
	return messages, nil
}

// Count 统计会话中的消息数量
func (r *GormMessageRepository) Count(ctx context.Context, conversationID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.MessageModel{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	if err != nil {
		return 0, domainErrors.NewInternalErrorWithCause("failed to count messages", err)
	}
	return count, nil
}
