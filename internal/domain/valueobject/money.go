package valueobject

import (
	"fmt"
	"math"
)

// Money 金额, 两位小数
type Money float64

// NewMoney rounds v to two decimals.
func NewMoney(v float64) Money {
	return Money(math.Round(v*100) / 100)
}

// Float64 返回数值
func (m Money) Float64() float64 {
	return float64(m)
}

// Mul multiplies by a quantity.
func (m Money) Mul(q int) Money {
	return NewMoney(float64(m) * float64(q))
}

// Add 相加
func (m Money) Add(o Money) Money {
	return NewMoney(float64(m) + float64(o))
}

// Format renders the amount with currency, dropping ".00".
func (m Money) Format(currency string) string {
	v := float64(m)
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f %s", v, currency)
	}
	return fmt.Sprintf("%.2f %s", v, currency)
}
