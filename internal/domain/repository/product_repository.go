package repository

import (
	"context"

	"github.com/chatcommerce/gateway/internal/domain/entity"
)

// ProductRepository 商品仓储接口
type ProductRepository interface {
	// FindByName matches name case-insensitively as a substring of the
	// product name, falling back to the description.
	FindByName(ctx context.Context, name string) (*entity.Product, error)

	// Search returns products whose name, description or category
	// contains any keyword, featured first.
	Search(ctx context.Context, keywords []string, limit int) ([]*entity.Product, error)

	// Featured returns the default catalog excerpt, featured first.
	Featured(ctx context.Context, limit int) ([]*entity.Product, error)

	// ListNames 返回全部商品名
	ListNames(ctx context.Context) ([]string, error)

	// Upsert 按名称写入商品 (seed 使用)
	Upsert(ctx context.Context, product *entity.Product) error
}
