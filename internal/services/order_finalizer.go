package services

import (
	"context"
	"encoding/json"
	"fmt"

	"bookstore-cart/internal/apperror"
	"bookstore-cart/internal/logger"
	"bookstore-cart/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RedemptionWriter фиксирует погашения в журнале.
type RedemptionWriter interface {
	Find(ctx context.Context, orderID, couponID uuid.UUID) (*models.CouponRedemption, error)
	Commit(ctx context.Context, redemption *models.CouponRedemption) error
}

// CouponByID читает актуальное определение купона.
type CouponByID interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
}

// CheckoutCart описывает операции корзины, нужные при оформлении заказа.
type CheckoutCart interface {
	Snapshot(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	ClearAfterOrder(ctx context.Context, userID, orderID uuid.UUID) error
}

// OrderFinalizer повторно проверяет купон оплаченного заказа, фиксирует погашение и очищает корзину.
type OrderFinalizer struct {
	ledger    RedemptionWriter
	coupons   CouponByID
	carts     CheckoutCart
	validator *CouponValidator
	pricing   *PricingService
	publisher EventPublisher
	log       *logger.Logger
}

// NewOrderFinalizer создаёт финализатор заказов.
func NewOrderFinalizer(ledger RedemptionWriter, coupons CouponByID, carts CheckoutCart, validator *CouponValidator,
	pricing *PricingService, publisher EventPublisher, log *logger.Logger) *OrderFinalizer {
	return &OrderFinalizer{
		ledger:    ledger,
		coupons:   coupons,
		carts:     carts,
		validator: validator,
		pricing:   pricing,
		publisher: publisherOrNoop(publisher),
		log:       log,
	}
}

// Finalize выполняет шаг оформления заказа. Повторный вызов для того же заказа безопасен.
// Скидка считается по сохранённой корзине; присланный снимок только сверяется с ней.
// Если купон больше не проходит проверку, возвращается отказ и корзина не меняется.
func (f *OrderFinalizer) Finalize(ctx context.Context, req *models.FinalizeRequest) (*models.FinalizeResult, error) {
	if req == nil || req.OrderID == uuid.Nil || req.UserID == uuid.Nil {
		return nil, apperror.Validation("order_id and user_id are required", nil)
	}
	if req.Cart != nil && req.Cart.UserID != uuid.Nil && req.Cart.UserID != req.UserID {
		return nil, apperror.Validation("cart does not belong to the user", nil)
	}

	stored, err := f.carts.Snapshot(ctx, req.UserID)
	if err != nil {
		if apperror.ReasonOf(err) != apperror.ReasonCartNotFound {
			return nil, err
		}
		stored = nil
	}

	result := &models.FinalizeResult{OrderID: req.OrderID, Discount: decimal.Zero}
	entry := f.log.WithFields(map[string]interface{}{
		"order_id": req.OrderID,
		"user_id":  req.UserID,
	})

	// после успешного погашения сохранённая корзина пуста, повтор узнаём по журналу
	couponID := cartCouponID(req.Cart)
	if stored != nil && stored.Coupon != nil {
		couponID = stored.Coupon.CouponID
	}
	if couponID != uuid.Nil {
		done, err := f.alreadyRedeemed(ctx, req, couponID, result)
		if err != nil {
			return nil, err
		}
		if done {
			entry.WithField("code", result.CouponCode).Info("Order already finalized")
			return result, nil
		}
	}

	if req.Cart != nil && cartCouponID(req.Cart) != cartCouponID(stored) {
		entry.Warn("Cart snapshot does not match the stored cart")
		return nil, apperror.Validation("cart snapshot does not match the stored cart", nil)
	}
	if stored == nil {
		return nil, cartNotFound()
	}

	if stored.Coupon == nil {
		if err := f.carts.ClearAfterOrder(ctx, req.UserID, req.OrderID); err != nil {
			return nil, fmt.Errorf("failed to clear cart: %w", err)
		}
		entry.Info("Order finalized without coupon")
		return result, nil
	}

	result.CouponCode = stored.Coupon.Code

	coupon, err := f.coupons.GetByID(ctx, stored.Coupon.CouponID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil, apperror.CouponRejected(apperror.ReasonCouponNotFound, "coupon no longer exists")
		}
		return nil, err
	}

	// полная проверка по актуальному купону и журналу
	if _, err := f.validator.Validate(ctx, coupon, req.UserID, stored); err != nil {
		// параллельный вызов мог зафиксировать этот же заказ между Find и проверкой лимитов
		if apperror.Is(err, apperror.KindCouponRejected) {
			done, findErr := f.alreadyRedeemed(ctx, req, coupon.ID, result)
			if findErr != nil {
				return nil, findErr
			}
			if done {
				entry.WithField("code", coupon.Code).Info("Order finalized concurrently")
				return result, nil
			}
		}
		entry.WithError(err).WithField("code", coupon.Code).Warn("Coupon rejected at finalize")
		return nil, err
	}

	// клиент платит то, что видел в корзине: берётся значение купона из сохранённого снимка
	subtotal := f.pricing.ComputeTotals(stored.Items, nil).Subtotal
	discount := f.pricing.Discount(stored.Coupon, subtotal)

	redemption := &models.CouponRedemption{
		ID:             uuid.New(),
		CouponID:       coupon.ID,
		UserID:         req.UserID,
		OrderID:        req.OrderID,
		Code:           coupon.Code,
		DiscountAmount: discount,
		RedeemedAt:     nowFunc(),
	}

	committed := true
	if err := f.ledger.Commit(ctx, redemption); err != nil {
		if !apperror.Is(err, apperror.KindDuplicate) {
			return nil, fmt.Errorf("failed to commit redemption: %w", err)
		}
		committed = false
		result.AlreadyRedeemed = true
	}
	result.Discount = discount

	if err := f.carts.ClearAfterOrder(ctx, req.UserID, req.OrderID); err != nil {
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	if committed {
		if err := f.publisher.PublishCouponRedeemed(redemption); err != nil {
			entry.WithError(err).Warn("Failed to publish coupon redeemed event")
		}
	}

	entry.WithFields(map[string]interface{}{
		"code":     coupon.Code,
		"discount": discount.String(),
	}).Info("Coupon redeemed")

	return result, nil
}

// alreadyRedeemed проверяет журнал и при найденной записи очищает корзину.
func (f *OrderFinalizer) alreadyRedeemed(ctx context.Context, req *models.FinalizeRequest, couponID uuid.UUID,
	result *models.FinalizeResult) (bool, error) {
	existing, err := f.ledger.Find(ctx, req.OrderID, couponID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check redemption: %w", err)
	}

	result.CouponCode = existing.Code
	result.Discount = existing.DiscountAmount
	result.AlreadyRedeemed = true
	if err := f.carts.ClearAfterOrder(ctx, req.UserID, req.OrderID); err != nil {
		return false, fmt.Errorf("failed to clear cart: %w", err)
	}
	return true, nil
}

func cartCouponID(cart *models.Cart) uuid.UUID {
	if cart == nil || cart.Coupon == nil {
		return uuid.Nil
	}
	return cart.Coupon.CouponID
}

// HandlePaymentSucceeded обрабатывает событие платёжного сервиса.
// Отказ купона не повторяется при повторной доставке, поэтому он только логируется.
func (f *OrderFinalizer) HandlePaymentSucceeded(ctx context.Context, event *models.Event) error {
	var data models.PaymentSucceededData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("failed to decode payment event: %w", err)
	}

	_, err := f.Finalize(ctx, &models.FinalizeRequest{
		OrderID: data.OrderID,
		UserID:  data.UserID,
		Cart:    data.Cart,
	})
	if err != nil {
		if apperror.Is(err, apperror.KindCouponRejected) || apperror.Is(err, apperror.KindValidation) ||
			apperror.Is(err, apperror.KindNotFound) {
			f.log.WithError(err).WithFields(map[string]interface{}{
				"event_id": event.ID,
				"order_id": data.OrderID,
				"reason":   apperror.ReasonOf(err),
			}).Warn("Payment event not finalized")
			return nil
		}
		return err
	}
	return nil
}
