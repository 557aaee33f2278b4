package repository

import (
	"context"

	"github.com/chatcommerce/gateway/internal/domain/entity"
)

// ChannelRepository 渠道凭据仓储接口
type ChannelRepository interface {
	FindByID(ctx context.Context, id string) (*entity.Channel, error)
	Save(ctx context.Context, channel *entity.Channel) error
}
