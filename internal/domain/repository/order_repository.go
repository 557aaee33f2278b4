package repository

import (
	"context"

	"github.com/chatcommerce/gateway/internal/domain/entity"
)

// OrderRepository 订单仓储接口
type OrderRepository interface {
	// PlaceOrder inserts the order, its item and decrements the product
	// stock by item.Quantity as one atomic unit. If the stock is lower
	// than the quantity nothing is written and an OUT_OF_STOCK error is
	// returned.
	PlaceOrder(ctx context.Context, order *entity.Order, item *entity.OrderItem) error

	// FindByNumber 根据订单号查找
	FindByNumber(ctx context.Context, number string) (*entity.Order, []*entity.OrderItem, error)

	// Delete removes an order and its items. Used for compensation and
	// admin tooling only; it does not restore stock.
	Delete(ctx context.Context, id string) error
}
