package services

import (
	"bookstore-cart/internal/models"

	"github.com/shopspring/decimal"
)

// Totals содержит результат расчёта корзины.
type Totals struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	Total         decimal.Decimal `json:"total"`
}

// PricingService считает суммы корзины. Не выполняет ввода-вывода.
type PricingService struct {
	precision int32
}

// NewPricingService создаёт калькулятор с точностью базовой валюты.
func NewPricingService(precision int) *PricingService {
	if precision < 0 {
		precision = 0
	}
	return &PricingService{precision: int32(precision)}
}

// ComputeTotals считает subtotal, скидку и итог по зафиксированным ценам позиций.
func (s *PricingService) ComputeTotals(items []models.CartItem, coupon *models.CouponSnapshot) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	subtotal = subtotal.Round(s.precision)

	discount := s.Discount(coupon, subtotal)
	return Totals{
		Subtotal:      subtotal,
		DiscountTotal: discount,
		Total:         subtotal.Sub(discount),
	}
}

// Discount применяет правило купона к subtotal. Результат всегда в [0, subtotal].
func (s *PricingService) Discount(coupon *models.CouponSnapshot, subtotal decimal.Decimal) decimal.Decimal {
	if coupon == nil || !subtotal.IsPositive() || !coupon.Value.IsPositive() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch coupon.DiscountType {
	case models.DiscountTypePercent:
		discount = subtotal.Mul(coupon.Value).Div(decimal.NewFromInt(100))
		if coupon.MaxDiscountAmount != nil && !coupon.MaxDiscountAmount.IsNegative() {
			discount = decimal.Min(discount, *coupon.MaxDiscountAmount)
		}
	case models.DiscountTypeFixed:
		discount = coupon.Value
	default:
		return decimal.Zero
	}

	discount = decimal.Min(discount.Round(s.precision), subtotal)
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}

// Precision возвращает число знаков после запятой базовой валюты.
func (s *PricingService) Precision() int32 {
	return s.precision
}
