package services

import (
	"time"

	"bookstore-cart/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventPublisher отправляет доменные события в шину.
// Ошибка публикации не отменяет уже зафиксированное изменение.
type EventPublisher interface {
	PublishCouponApplied(userID uuid.UUID, coupon *models.CouponSnapshot, discount decimal.Decimal) error
	PublishCartCleared(userID uuid.UUID, orderID *uuid.UUID) error
	PublishCartsExpired(removed int64, before time.Time) error
	PublishCouponRedeemed(redemption *models.CouponRedemption) error
}

type noopPublisher struct{}

func (noopPublisher) PublishCouponApplied(uuid.UUID, *models.CouponSnapshot, decimal.Decimal) error {
	return nil
}

func (noopPublisher) PublishCartCleared(uuid.UUID, *uuid.UUID) error {
	return nil
}

func (noopPublisher) PublishCartsExpired(int64, time.Time) error {
	return nil
}

func (noopPublisher) PublishCouponRedeemed(*models.CouponRedemption) error {
	return nil
}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}
