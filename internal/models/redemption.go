package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CouponRedemption представляет неизменяемый факт погашения купона в заказе.
type CouponRedemption struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	CouponID       uuid.UUID       `json:"coupon_id" db:"coupon_id"`
	UserID         uuid.UUID       `json:"user_id" db:"user_id"`
	OrderID        uuid.UUID       `json:"order_id" db:"order_id"`
	Code           string          `json:"code" db:"code"`
	DiscountAmount decimal.Decimal `json:"discount_amount" db:"discount_amount"`
	RedeemedAt     time.Time       `json:"redeemed_at" db:"redeemed_at"`
}

// RedemptionStats агрегирует журнал погашений по купону.
type RedemptionStats struct {
	CouponID      uuid.UUID       `json:"coupon_id"`
	Code          string          `json:"code"`
	Redemptions   int             `json:"redemptions"`
	UniqueUsers   int             `json:"unique_users"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	LastRedeemed  *time.Time      `json:"last_redeemed_at,omitempty"`
}

// FinalizeRequest описывает оплаченный заказ, построенный из снимка корзины.
type FinalizeRequest struct {
	OrderID uuid.UUID `json:"order_id"`
	UserID  uuid.UUID `json:"user_id"`
	Cart    *Cart     `json:"cart"`
}

// FinalizeResult возвращается сервису заказов после фиксации.
type FinalizeResult struct {
	OrderID         uuid.UUID       `json:"order_id"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	Discount        decimal.Decimal `json:"discount"`
	AlreadyRedeemed bool            `json:"already_redeemed"`
}
