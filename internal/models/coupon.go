package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountType описывает тип купона.
type DiscountType string

const (
	DiscountTypeFixed   DiscountType = "fixed"
	DiscountTypePercent DiscountType = "percent"
)

// Coupon представляет промо-правило, которым управляет администратор.
type Coupon struct {
	ID                    uuid.UUID        `json:"id" db:"id"`
	Code                  string           `json:"code" db:"code"`
	DiscountType          DiscountType     `json:"discount_type" db:"discount_type"`
	Value                 decimal.Decimal  `json:"value" db:"value"`
	MaxDiscountAmount     *decimal.Decimal `json:"max_discount_amount,omitempty" db:"max_discount_amount"`
	MinSubtotal           *decimal.Decimal `json:"min_subtotal,omitempty" db:"min_subtotal"`
	StartsAt              *time.Time       `json:"starts_at,omitempty" db:"starts_at"`
	EndsAt                *time.Time       `json:"ends_at,omitempty" db:"ends_at"`
	Active                bool             `json:"active" db:"active"`
	UsageLimitTotal       *int             `json:"usage_limit_total,omitempty" db:"usage_limit_total"`
	UsageLimitPerUser     *int             `json:"usage_limit_per_user,omitempty" db:"usage_limit_per_user"`
	EligibleProductIDs    []uuid.UUID      `json:"eligible_product_ids" db:"eligible_product_ids"`
	EligibleCategorySlugs []string         `json:"eligible_category_slugs" db:"eligible_category_slugs"`
	CreatedAt             time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at" db:"updated_at"`
}

// HasEligibilityRules сообщает, ограничен ли купон товарами или категориями.
func (c *Coupon) HasEligibilityRules() bool {
	return len(c.EligibleProductIDs) > 0 || len(c.EligibleCategorySlugs) > 0
}

// CouponSnapshot хранит неизменяемую копию полей купона, влияющих на скидку,
// снятую в момент применения к корзине.
type CouponSnapshot struct {
	CouponID          uuid.UUID        `json:"coupon_id"`
	Code              string           `json:"code"`
	DiscountType      DiscountType     `json:"discount_type"`
	Value             decimal.Decimal  `json:"value"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount,omitempty"`
	AppliedAt         time.Time        `json:"applied_at"`
}

// NewCouponSnapshot копирует поля купона, не сохраняя ссылок на исходную запись.
func NewCouponSnapshot(c *Coupon, appliedAt time.Time) *CouponSnapshot {
	snap := &CouponSnapshot{
		CouponID:     c.ID,
		Code:         c.Code,
		DiscountType: c.DiscountType,
		Value:        c.Value,
		AppliedAt:    appliedAt,
	}
	if c.MaxDiscountAmount != nil {
		capValue := *c.MaxDiscountAmount
		snap.MaxDiscountAmount = &capValue
	}
	return snap
}

// NormalizeCouponCode приводит код купона к каноничному виду.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CouponPayload описывает тело запроса на создание или обновление купона.
type CouponPayload struct {
	Code                  string           `json:"code"`
	DiscountType          DiscountType     `json:"discount_type"`
	Value                 decimal.Decimal  `json:"value"`
	MaxDiscountAmount     *decimal.Decimal `json:"max_discount_amount,omitempty"`
	MinSubtotal           *decimal.Decimal `json:"min_subtotal,omitempty"`
	StartsAt              *time.Time       `json:"starts_at,omitempty"`
	EndsAt                *time.Time       `json:"ends_at,omitempty"`
	Active                bool             `json:"active"`
	UsageLimitTotal       *int             `json:"usage_limit_total,omitempty"` // nil = безлимит
	UsageLimitPerUser     *int             `json:"usage_limit_per_user,omitempty"`
	EligibleProductIDs    []uuid.UUID      `json:"eligible_product_ids,omitempty"`
	EligibleCategorySlugs []string         `json:"eligible_category_slugs,omitempty"`
}
