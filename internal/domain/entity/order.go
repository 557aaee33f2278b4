package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chatcommerce/gateway/internal/domain/valueobject"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus 支付状态
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// MaxOrderQuantity bounds a single line quantity.
const MaxOrderQuantity = 100

// Order 订单
type Order struct {
	ID             string
	Number         string
	ConversationID string
	CustomerName   string
	Phone          string
	Address        string
	Subtotal       valueobject.Money
	Shipping       valueobject.Money
	Total          valueobject.Money
	Currency       string
	Status         OrderStatus
	PaymentStatus  PaymentStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrderItem 订单行
type OrderItem struct {
	ID          string
	OrderID     string
	ProductID   string
	ProductName string
	Size        string
	Color       string
	Quantity    int
	UnitPrice   valueobject.Money
	LineTotal   valueobject.Money
}

// NewOrder prices a single-line order for product. The returned item is
// linked to the order and must be persisted together with it.
func NewOrder(product *Product, quantity int, customerName, phone, address, size, color string, shipping valueobject.Money, currency, conversationID string, now time.Time) (*Order, *OrderItem, error) {
	if quantity <= 0 || quantity > MaxOrderQuantity {
		return nil, nil, ErrInvalidQuantity
	}

	unit := product.UnitPrice()
	line := unit.Mul(quantity)

	order := &Order{
		ID:             uuid.NewString(),
		Number:         NewOrderNumber(now),
		ConversationID: conversationID,
		CustomerName:   strings.TrimSpace(customerName),
		Phone:          strings.TrimSpace(phone),
		Address:        strings.TrimSpace(address),
		Subtotal:       line,
		Shipping:       shipping,
		Total:          line.Add(shipping),
		Currency:       currency,
		Status:         OrderStatusPending,
		PaymentStatus:  PaymentUnpaid,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	item := &OrderItem{
		ID:          uuid.NewString(),
		OrderID:     order.ID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Size:        strings.TrimSpace(size),
		Color:       strings.TrimSpace(color),
		Quantity:    quantity,
		UnitPrice:   unit,
		LineTotal:   line,
	}
	return order, item, nil
}

// NewOrderNumber 生成订单号 ORD-YYYYMMDD-XXXXXX
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix)
}
