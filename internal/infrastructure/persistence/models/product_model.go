package models

import "time"

// ProductModel 数据库商品模型
type ProductModel struct {
	ID              string   `gorm:"primaryKey;size:64"`
	Name            string   `gorm:"uniqueIndex;size:255;not null"`
	Description     string   `gorm:"type:text"`
	Category        string   `gorm:"index;size:64"`
	Price           float64  `gorm:"not null"`
	SalePrice       *float64
	DiscountPercent float64
	Stock           int  `gorm:"not null;default:0"`
	Featured        bool `gorm:"index"`
	Sizes           string `gorm:"size:512"` // comma separated
	Colors          string `gorm:"size:512"` // comma separated
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName 指定表名
func (ProductModel) TableName() string {
	return "products"
}
