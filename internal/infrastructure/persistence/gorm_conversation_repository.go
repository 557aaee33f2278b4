package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chatcommerce/gateway/internal/domain/entity"
	"github.com/chatcommerce/gateway/internal/domain/repository"
	"github.com/chatcommerce/gateway/internal/infrastructure/persistence/models"
	domainErrors "github.com/chatcommerce/gateway/pkg/errors"
)

// GormConversationRepository GORM 实现的会话仓储
type GormConversationRepository struct {
	db *gorm.DB
}

// NewGormConversationRepository 创建 GORM 会话仓储
func NewGormConversationRepository(db *gorm.DB) repository.ConversationRepository {
	return &GormConversationRepository{db: db}
}

// FindOrCreate 查找或创建会话
func (r *GormConversationRepository) FindOrCreate(ctx context.Context, channelID, senderID string) (*entity.Conversation, error) {
	conv, err := entity.NewConversation(uuid.NewString(), channelID, senderID)
	if err != nil {
		return nil, domainErrors.NewInvalidInputError(err.Error())
	}

	now := time.Now().UTC()
	candidate := models.ConversationModel{
		ID:             conv.ID(),
		ChannelID:      channelID,
		SenderID:       senderID,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	// 并发首条消息由唯一索引兜底
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&candidate).Error
	if err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to create conversation", err)
	}

	var model models.ConversationModel
	err = r.db.WithContext(ctx).
		Where("channel_id = ? AND sender_id = ?", channelID, senderID).
		First(&model).Error
	if err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to load conversation", err)
	}
	return toConversationEntity(&model), nil
}

// FindByID 根据ID查找会话
func (r *GormConversationRepository) FindByID(ctx context.Context, id string) (*entity.Conversation, error) {
	var model models.ConversationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("conversation not found")
		}
		return nil, domainErrors.NewInternalErrorWithCause("failed to find conversation", err)
	}
	return toConversationEntity(&model), nil
}

// Touch 更新最后活跃时间
func (r *GormConversationRepository) Touch(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.ConversationModel{}).
		Where("id = ? AND last_activity_at < ?", id, at.UTC()).
		Update("last_activity_at", at.UTC())
	if result.Error != nil {
		return domainErrors.NewInternalErrorWithCause("failed to touch conversation", result.Error)
	}
	return nil
}

func toConversationEntity(m *models.ConversationModel) *entity.Conversation {
	return entity.ReconstructConversation(m.ID, m.ChannelID, m.SenderID, m.CreatedAt, m.LastActivityAt)
}
