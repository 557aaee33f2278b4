package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/chatcommerce/gateway/internal/domain/entity"
	"github.com/chatcommerce/gateway/internal/domain/repository"
	"github.com/chatcommerce/gateway/internal/domain/valueobject"
	"github.com/chatcommerce/gateway/pkg/errors"
)

// DefaultShippingFee is the fixed surcharge added to every order.
const DefaultShippingFee = 50

// OrderReceipt is what the customer is told after a successful order.
type OrderReceipt struct {
	Number      string
	ProductName string
	Quantity    int
	Total       valueobject.Money
	Currency    string
}

// OrderCreator turns a parsed CREATE_ORDER command into a stored order.
type OrderCreator interface {
	CreateOrder(ctx context.Context, cmd OrderCommand, conversationID string) (OrderReceipt, error)
}

// OrderFulfillment prices and places single-line orders.
type OrderFulfillment struct {
	products repository.ProductRepository
	orders   repository.OrderRepository
	shipping valueobject.Money
	currency string
	events   EventSink
	clock    Clock
	logger   *zap.Logger
}

// NewOrderFulfillment 创建订单履约服务
func NewOrderFulfillment(
	products repository.ProductRepository,
	orders repository.OrderRepository,
	shippingFee float64,
	currency string,
	events EventSink,
	clock Clock,
	logger *zap.Logger,
) *OrderFulfillment {
	if events == nil {
		events = NopSink{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &OrderFulfillment{
		products: products,
		orders:   orders,
		shipping: valueobject.NewMoney(shippingFee),
		currency: currency,
		events:   events,
		clock:    clock,
		logger:   logger.With(zap.String("component", "fulfillment")),
	}
}

// CreateOrder validates the customer fields, resolves the product and stores
// order, item and stock decrement in one transaction. On any error nothing
// has been written.
func (f *OrderFulfillment) CreateOrder(ctx context.Context, cmd OrderCommand, conversationID string) (OrderReceipt, error) {
	var missing []string
	if strings.TrimSpace(cmd.CustomerName) == "" {
		missing = append(missing, FieldName)
	}
	if strings.TrimSpace(cmd.Phone) == "" {
		missing = append(missing, FieldPhone)
	}
	if len(missing) > 0 {
		return OrderReceipt{}, errors.NewMissingCustomerInfoError(missing...)
	}

	product, err := f.products.FindByName(ctx, cmd.Product)
	if err != nil {
		if errors.Is(err, errors.CodeProductNotFound) {
			return OrderReceipt{}, err
		}
		return OrderReceipt{}, errors.NewInternalErrorWithCause("product lookup failed", err)
	}

	order, item, err := entity.NewOrder(
		product, cmd.Quantity,
		cmd.CustomerName, cmd.Phone, cmd.Address, cmd.Size, cmd.Color,
		f.shipping, f.currency, conversationID, f.clock.Now(),
	)
	if err != nil {
		return OrderReceipt{}, errors.Wrap(errors.CodeInvalidInput, "invalid order", err)
	}

	if err := f.orders.PlaceOrder(ctx, order, item); err != nil {
		if errors.CodeOf(err) == "" {
			err = errors.NewOrderPersistenceError(err)
		}
		f.logger.Warn("Order not placed",
			zap.String("conversation_id", conversationID),
			zap.String("product", product.Name),
			zap.Int("quantity", cmd.Quantity),
			zap.Error(err),
		)
		return OrderReceipt{}, err
	}

	f.logger.Info("Order placed",
		zap.String("conversation_id", conversationID),
		zap.String("order_number", order.Number),
		zap.String("product", product.Name),
		zap.Int("quantity", item.Quantity),
		zap.Float64("total", order.Total.Float64()),
	)
	f.events.Emit(ctx, EventOrderCreated, OrderCreatedPayload{
		OrderNumber:    order.Number,
		ConversationID: conversationID,
		ProductName:    product.Name,
		Quantity:       item.Quantity,
		Total:          order.Total.Float64(),
	})

	return OrderReceipt{
		Number:      order.Number,
		ProductName: product.Name,
		Quantity:    item.Quantity,
		Total:       order.Total,
		Currency:    order.Currency,
	}, nil
}
