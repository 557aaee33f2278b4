package application

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chatcommerce/gateway/internal/domain/repository"
	"github.com/chatcommerce/gateway/internal/infrastructure/config"
	"github.com/chatcommerce/gateway/internal/infrastructure/persistence"
)

// Store 仓储集合
type Store struct {
	DB            *gorm.DB // nil for the memory store
	Channels      repository.ChannelRepository
	Conversations repository.ConversationRepository
	Messages      repository.MessageRepository
	Products      repository.ProductRepository
	Orders        repository.OrderRepository
}

// OpenStore 按 database.type 打开仓储
func OpenStore(cfg *config.DatabaseConfig, logger *zap.Logger) (*Store, error) {
	if cfg.Type == "memory" {
		catalog := persistence.NewMemoryCatalog()
		logger.Info("Using in-memory store")
		return &Store{
			Channels:      persistence.NewMemoryChannelRepository(),
			Conversations: persistence.NewMemoryConversationRepository(),
			Messages:      persistence.NewMemoryMessageRepository(),
			Products:      catalog.Products(),
			Orders:        catalog.Orders(),
		}, nil
	}

	db, err := persistence.NewDBConnection(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("Database connected", zap.String("type", cfg.Type))
	return &Store{
		DB:            db,
		Channels:      persistence.NewGormChannelRepository(db),
		Conversations: persistence.NewGormConversationRepository(db),
		Messages:      persistence.NewGormMessageRepository(db),
		Products:      persistence.NewGormProductRepository(db),
		Orders:        persistence.NewGormOrderRepository(db),
	}, nil
}

// Persistent reports whether data outlives the process.
func (s *Store) Persistent() bool {
	return s.DB != nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.DB == nil {
		return nil
	}
	return persistence.Close(s.DB)
}
