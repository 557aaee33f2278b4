package models

import "time"

// OrderModel 数据库订单模型
type OrderModel struct {
	ID             string  `gorm:"primaryKey;size:64"`
	Number         string  `gorm:"uniqueIndex;size:32;not null"`
	ConversationID string  `gorm:"index;size:64"`
	CustomerName   string  `gorm:"size:255;not null"`
	Phone          string  `gorm:"size:32;not null"`
	Address        string  `gorm:"type:text"`
	Subtotal       float64 `gorm:"not null"`
	Shipping       float64 `gorm:"not null"`
	Total          float64 `gorm:"not null"`
	Currency       string  `gorm:"size:8"`
	Status         string  `gorm:"size:16;not null"`
	PaymentStatus  string  `gorm:"size:16;not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Items          []OrderItemModel `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 数据库订单行模型
type OrderItemModel struct {
	ID          string  `gorm:"primaryKey;size:64"`
	OrderID     string  `gorm:"index;size:64;not null"`
	ProductID   string  `gorm:"index;size:64;not null"`
	ProductName string  `gorm:"size:255"`
	Size        string  `gorm:"size:32"`
	Color       string  `gorm:"size:32"`
	Quantity    int     `gorm:"not null"`
	UnitPrice   float64 `gorm:"not null"`
	LineTotal   float64 `gorm:"not null"`
}

// TableName 指定表名
func (OrderItemModel) TableName() string {
	return "order_items"
}
