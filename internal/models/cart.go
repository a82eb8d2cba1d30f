package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartState описывает состояние корзины
type CartState string

const (
	CartStateEmpty  CartState = "empty"
	CartStateActive CartState = "active"
)

// CartItem представляет позицию корзины с ценой, зафиксированной при добавлении
type CartItem struct {
	ProductID    uuid.UUID       `json:"product_id"`
	Title        string          `json:"title"`
	CategorySlug string          `json:"category_slug"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	AddedAt      time.Time       `json:"added_at"`
}

// LineTotal возвращает стоимость позиции
func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart представляет корзину пользователя
type Cart struct {
	UserID        uuid.UUID       `json:"user_id" db:"user_id"`
	Items         []CartItem      `json:"items" db:"items"`
	Coupon        *CouponSnapshot `json:"coupon,omitempty" db:"coupon"`
	Subtotal      decimal.Decimal `json:"subtotal" db:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discount_total" db:"discount_total"`
	Total         decimal.Decimal `json:"total" db:"total"`
	ExpiresAt     time.Time       `json:"expires_at" db:"expires_at"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// State возвращает производное состояние корзины
func (c *Cart) State() CartState {
	if len(c.Items) == 0 {
		return CartStateEmpty
	}
	return CartStateActive
}

// FindItem возвращает индекс позиции по товару или -1
func (c *Cart) FindItem(productID uuid.UUID) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Clone возвращает глубокую копию корзины
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Items = make([]CartItem, len(c.Items))
	copy(cp.Items, c.Items)
	if c.Coupon != nil {
		snap := *c.Coupon
		if c.Coupon.MaxDiscountAmount != nil {
			capValue := *c.Coupon.MaxDiscountAmount
			snap.MaxDiscountAmount = &capValue
		}
		cp.Coupon = &snap
	}
	return &cp
}

// CartView представляет ответ API с состоянием корзины
type CartView struct {
	*Cart
	Status CartState `json:"state"`
}

// AddCartItemRequest представляет запрос на добавление товара
type AddCartItemRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// SetQuantityRequest представляет запрос на изменение количества
type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// ApplyCouponRequest представляет запрос на применение купона
type ApplyCouponRequest struct {
	Code string `json:"code"`
}
