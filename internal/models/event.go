package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType представляет тип события
type EventType string

const (
	EventTypeCouponApplied    EventType = "cart.coupon_applied"
	EventTypeCartCleared      EventType = "cart.cleared"
	EventTypeCartsExpired     EventType = "cart.expired"
	EventTypeCouponRedeemed   EventType = "coupon.redeemed"
	EventTypePaymentSucceeded EventType = "payment.succeeded"
)

// Event представляет событие в шине
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// CouponAppliedData представляет данные события применения купона
type CouponAppliedData struct {
	UserID   uuid.UUID       `json:"user_id"`
	CouponID uuid.UUID       `json:"coupon_id"`
	Code     string          `json:"code"`
	Discount decimal.Decimal `json:"discount"`
}

// CartClearedData представляет данные события очистки корзины
type CartClearedData struct {
	UserID  uuid.UUID  `json:"user_id"`
	OrderID *uuid.UUID `json:"order_id,omitempty"`
}

// CartsExpiredData представляет данные события удаления просроченных корзин
type CartsExpiredData struct {
	Removed int64     `json:"removed"`
	Before  time.Time `json:"before"`
}

// CouponRedeemedData представляет данные события погашения купона
type CouponRedeemedData struct {
	RedemptionID uuid.UUID       `json:"redemption_id"`
	CouponID     uuid.UUID       `json:"coupon_id"`
	UserID       uuid.UUID       `json:"user_id"`
	OrderID      uuid.UUID       `json:"order_id"`
	Code         string          `json:"code"`
	Discount     decimal.Decimal `json:"discount"`
}

// PaymentSucceededData представляет событие платёжного сервиса об успешной оплате заказа
type PaymentSucceededData struct {
	OrderID uuid.UUID `json:"order_id"`
	UserID  uuid.UUID `json:"user_id"`
	Cart    *Cart     `json:"cart"`
}
