package services

import (
	"context"
	"fmt"
	"time"

	"bookstore-cart/internal/apperror"
	"bookstore-cart/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// nowFunc подменяется в тестах.
var nowFunc = time.Now

// UsageCounter читает зафиксированные погашения из журнала.
type UsageCounter interface {
	CountTotal(ctx context.Context, couponID uuid.UUID) (int, error)
	CountForUser(ctx context.Context, couponID, userID uuid.UUID) (int, error)
}

// CouponValidator решает, применим ли купон к корзине пользователя, и считает скидку.
type CouponValidator struct {
	pricing *PricingService
	ledger  UsageCounter
}

// NewCouponValidator создаёт валидатор купонов.
func NewCouponValidator(pricing *PricingService, ledger UsageCounter) *CouponValidator {
	return &CouponValidator{
		pricing: pricing,
		ledger:  ledger,
	}
}

// Validate проверяет купон по порядку правил и возвращает применимую скидку.
// Первая неуспешная проверка определяет причину отказа.
func (v *CouponValidator) Validate(ctx context.Context, coupon *models.Coupon, userID uuid.UUID, cart *models.Cart) (decimal.Decimal, error) {
	if coupon == nil {
		return decimal.Zero, apperror.WithReason(apperror.KindNotFound, apperror.ReasonCouponNotFound, "coupon not found", nil)
	}
	if cart == nil {
		cart = &models.Cart{UserID: userID}
	}

	if !coupon.Active {
		return decimal.Zero, apperror.CouponRejected(apperror.ReasonCouponInactive, "coupon is not active")
	}

	now := nowFunc()
	if coupon.StartsAt != nil && now.Before(*coupon.StartsAt) {
		return decimal.Zero, apperror.CouponRejected(apperror.ReasonCouponOutsideWindow, "coupon is not valid yet")
	}
	if coupon.EndsAt != nil && now.After(*coupon.EndsAt) {
		return decimal.Zero, apperror.CouponRejected(apperror.ReasonCouponOutsideWindow, "coupon has expired")
	}

	// Subtotal считаем по текущим позициям, а не по сохранённому значению
	subtotal := v.pricing.ComputeTotals(cart.Items, nil).Subtotal
	if coupon.MinSubtotal != nil && subtotal.LessThan(*coupon.MinSubtotal) {
		return decimal.Zero, apperror.CouponRejected(apperror.ReasonMinSubtotalNotMet,
			fmt.Sprintf("cart subtotal must be at least %s", coupon.MinSubtotal.String()))
	}

	if coupon.HasEligibilityRules() && !cartMatchesEligibility(coupon, cart.Items) {
		return decimal.Zero, apperror.CouponRejected(apperror.ReasonCartNotEligible, "coupon does not apply to items in the cart")
	}

	if coupon.UsageLimitTotal != nil {
		used, err := v.ledger.CountTotal(ctx, coupon.ID)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to count coupon redemptions: %w", err)
		}
		if used >= *coupon.UsageLimitTotal {
			return decimal.Zero, apperror.CouponRejected(apperror.ReasonUsageLimitReached, "coupon usage limit reached")
		}
	}

	if coupon.UsageLimitPerUser != nil {
		used, err := v.ledger.CountForUser(ctx, coupon.ID, userID)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to count user coupon redemptions: %w", err)
		}
		if used >= *coupon.UsageLimitPerUser {
			return decimal.Zero, apperror.CouponRejected(apperror.ReasonUserLimitReached, "coupon already used the maximum number of times")
		}
	}

	discount := v.pricing.Discount(models.NewCouponSnapshot(coupon, now), subtotal)
	if !discount.IsPositive() {
		return decimal.Zero, apperror.CouponRejected(apperror.ReasonZeroDiscount, "coupon gives no discount for this cart")
	}

	return discount, nil
}

func cartMatchesEligibility(coupon *models.Coupon, items []models.CartItem) bool {
	products := make(map[uuid.UUID]struct{}, len(coupon.EligibleProductIDs))
	for _, id := range coupon.EligibleProductIDs {
		products[id] = struct{}{}
	}
	categories := make(map[string]struct{}, len(coupon.EligibleCategorySlugs))
	for _, slug := range coupon.EligibleCategorySlugs {
		categories[slug] = struct{}{}
	}

	for _, it := range items {
		if _, ok := products[it.ProductID]; ok {
			return true
		}
		if _, ok := categories[it.CategorySlug]; ok {
			return true
		}
	}
	return false
}
