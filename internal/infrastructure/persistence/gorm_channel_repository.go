package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/chatcommerce/gateway/internal/domain/entity"
	"github.com/chatcommerce/gateway/internal/domain/repository"
	"github.com/chatcommerce/gateway/internal/domain/valueobject"
	"github.com/chatcommerce/gateway/internal/infrastructure/persistence/models"
	domainErrors "github.com/chatcommerce/gateway/pkg/errors"
)

// GormChannelRepository GORM 实现的渠道仓储
type GormChannelRepository struct {
	db *gorm.DB
}

// NewGormChannelRepository 创建 GORM 渠道仓储
func NewGormChannelRepository(db *gorm.DB) repository.ChannelRepository {
	return &GormChannelRepository{db: db}
}

// FindByID 根据ID查找渠道
func (r *GormChannelRepository) FindByID(ctx context.Context, id string) (*entity.Channel, error) {
	var m models.ChannelModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("channel not found")
		}
		return nil, domainErrors.NewInternalErrorWithCause("failed to find channel", err)
	}
	return &entity.Channel{
		ID:          m.ID,
		Type:        valueobject.ChannelType(m.Type),
		Name:        m.Name,
		AccessToken: m.AccessToken,
		Enabled:     m.Enabled,
	}, nil
}

// Save 创建或更新渠道
func (r *GormChannelRepository) Save(ctx context.Context, ch *entity.Channel) error {
	m := &models.ChannelModel{
		ID:          ch.ID,
		Type:        string(ch.Type),
		Name:        ch.Name,
		AccessToken: ch.AccessToken,
		Enabled:     ch.Enabled,
	}
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to save channel", err)
	}
	return nil
}
