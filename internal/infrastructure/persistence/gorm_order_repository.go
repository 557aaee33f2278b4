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

// GormOrderRepository GORM 实现的订单仓储
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository 创建 GORM 订单仓储
func NewGormOrderRepository(db *gorm.DB) repository.OrderRepository {
	return &GormOrderRepository{db: db}
}

// PlaceOrder 事务内: 条件扣减库存 → 写订单 → 写订单行
func (r *GormOrderRepository) PlaceOrder(ctx context.Context, order *entity.Order, item *entity.OrderItem) error {
	if order == nil || item == nil {
		return domainErrors.NewOrderPersistenceError(entity.ErrEmptyOrderItem)
	}

	orderModel := toOrderModel(order)
	itemModel := toOrderItemModel(item)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ProductModel{}).
			Where("id = ? AND stock >= ?", item.ProductID, item.Quantity).
			UpdateColumn("stock", gorm.Expr("stock - ?", item.Quantity))
		if res.Error != nil {
			return domainErrors.NewOrderPersistenceError(res.Error)
		}
		if res.RowsAffected == 0 {
			return domainErrors.NewOutOfStockError(item.ProductName, item.Quantity)
		}

		if err := tx.Omit("Items").Create(orderModel).Error; err != nil {
			return domainErrors.NewOrderPersistenceError(err)
		}
		if err := tx.Create(itemModel).Error; err != nil {
			return domainErrors.NewOrderPersistenceError(err)
		}
		return nil
	})
}

// FindByNumber 根据订单号查找
func (r *GormOrderRepository) FindByNumber(ctx context.Context, number string) (*entity.Order, []*entity.OrderItem, error) {
	var model models.OrderModel
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("number = ?", number).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, domainErrors.NewNotFoundError("order not found")
		}
		return nil, nil, domainErrors.NewInternalErrorWithCause("failed to find order", err)
	}

	items := make([]*entity.OrderItem, 0, len(model.Items))
	for i := range model.Items {
		items = append(items, toOrderItemEntity(&model.Items[i]))
	}
	return toOrderEntity(&model), items, nil
}

// Delete 删除订单及订单行
func (r *GormOrderRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItemModel{}).Error; err != nil {
			return domainErrors.NewInternalErrorWithCause("failed to delete order items", err)
		}
		res := tx.Where("id = ?", id).Delete(&models.OrderModel{})
		if res.Error != nil {
			return domainErrors.NewInternalErrorWithCause("failed to delete order", res.Error)
		}
		if res.RowsAffected == 0 {
			return domainErrors.NewNotFoundError("order not found")
		}
		return nil
	})
}

func toOrderModel(o *entity.Order) *models.OrderModel {
	return &models.OrderModel{
		ID:             o.ID,
		Number:         o.Number,
		ConversationID: o.ConversationID,
		CustomerName:   o.CustomerName,
		Phone:          o.Phone,
		Address:        o.Address,
		Subtotal:       o.Subtotal.Float64(),
		Shipping:       o.Shipping.Float64(),
		Total:          o.Total.Float64(),
		Currency:       o.Currency,
		Status:         string(o.Status),
		PaymentStatus:  string(o.PaymentStatus),
		CreatedAt:      o.CreatedAt.UTC(),
		UpdatedAt:      o.UpdatedAt.UTC(),
	}
}

func toOrderItemModel(i *entity.OrderItem) *models.OrderItemModel {
	return &models.OrderItemModel{
		ID:          i.ID,
		OrderID:     i.OrderID,
		ProductID:   i.ProductID,
		ProductName: i.ProductName,
		Size:        i.Size,
		Color:       i.Color,
		Quantity:    i.Quantity,
		UnitPrice:   i.UnitPrice.Float64(),
		LineTotal:   i.LineTotal.Float64(),
	}
}

func toOrderEntity(m *models.OrderModel) *entity.Order {
	return &entity.Order{
		ID:             m.ID,
		Number:         m.Number,
		ConversationID: m.ConversationID,
		CustomerName:   m.CustomerName,
		Phone:          m.Phone,
		Address:        m.Address,
		Subtotal:       valueobject.NewMoney(m.Subtotal),
		Shipping:       valueobject.NewMoney(m.Shipping),
		Total:          valueobject.NewMoney(m.Total),
		Currency:       m.Currency,
		Status:         entity.OrderStatus(m.Status),
		PaymentStatus:  entity.PaymentStatus(m.PaymentStatus),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toOrderItemEntity(m *models.OrderItemModel) *entity.OrderItem {
	return &entity.OrderItem{
		ID:          m.ID,
		OrderID:     m.OrderID,
		ProductID:   m.ProductID,
		ProductName: m.ProductName,
		Size:        m.Size,
		Color:       m.Color,
		Quantity:    m.Quantity,
		UnitPrice:   valueobject.NewMoney(m.UnitPrice),
		LineTotal:   valueobject.NewMoney(m.LineTotal),
	}
}
