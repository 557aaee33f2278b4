package entity

import (
	"strings"

	"github.com/chatcommerce/gateway/internal/domain/valueobject"
)

// Product 商品 (catalog is managed outside the engine; read-mostly here)
type Product struct {
	ID              string
	Name            string
	Description     string
	Category        string
	Price           float64
	SalePrice       *float64
	DiscountPercent float64
	Stock           int
	Featured        bool
	Sizes           []string
	Colors          []string
}

// UnitPrice resolves the price a customer pays for one unit: an explicit
// sale price wins, then a percentage discount, then the list price.
func (p *Product) UnitPrice() valueobject.Money {
	if p.SalePrice != nil && *p.SalePrice > 0 {
		return valueobject.NewMoney(*p.SalePrice)
	}
	if p.DiscountPercent > 0 {
		return valueobject.NewMoney(p.Price * (100 - p.DiscountPercent) / 100)
	}
	return valueobject.NewMoney(p.Price)
}

// Discounted 是否有折扣
func (p *Product) Discounted() bool {
	return p.UnitPrice().Float64() < valueobject.NewMoney(p.Price).Float64()
}

// InStock 是否有货
func (p *Product) InStock() bool {
	return p.Stock > 0
}

// Matches reports whether term appears in the name or description, case-insensitively.
func (p *Product) Matches(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(p.Name), term) ||
		strings.Contains(strings.ToLower(p.Description), term)
}
