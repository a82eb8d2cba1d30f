package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookstore-cart/internal/apperror"
	"bookstore-cart/internal/logger"
	"bookstore-cart/internal/models"
	"bookstore-cart/internal/redis"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CouponStore хранит определения купонов.
type CouponStore interface {
	Create(ctx context.Context, c *models.Coupon) error
	Update(ctx context.Context, c *models.Coupon) error
	Deactivate(ctx context.Context, code string) error
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	List(ctx context.Context, limit, offset int) ([]*models.Coupon, error)
}

// RedemptionStatsReader агрегирует журнал погашений.
type RedemptionStatsReader interface {
	Stats(ctx context.Context, couponID uuid.UUID) (*models.RedemptionStats, error)
	ListByCoupon(ctx context.Context, couponID uuid.UUID, limit, offset int) ([]*models.CouponRedemption, error)
}

// CouponCache кеширует определения купонов.
type CouponCache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
}

var maxPercent = decimal.NewFromInt(100)

// CouponService управляет купонами и отдаёт их движку корзины через кеш.
type CouponService struct {
	store    CouponStore
	ledger   RedemptionStatsReader
	cache    CouponCache
	cacheTTL time.Duration
	log      *logger.Logger
}

// NewCouponService создаёт сервис купонов. cache может быть nil.
func NewCouponService(store CouponStore, ledger RedemptionStatsReader, cache CouponCache, cacheTTL time.Duration, log *logger.Logger) *CouponService {
	return &CouponService{
		store:    store,
		ledger:   ledger,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

// CreateCoupon создаёт новый купон.
func (s *CouponService) CreateCoupon(ctx context.Context, req *models.CouponPayload) (*models.Coupon, error) {
	if req == nil {
		return nil, apperror.Validation("request body is required", nil)
	}
	req.Code = models.NormalizeCouponCode(req.Code)
	if req.Code == "" {
		return nil, apperror.Validation("code is required", nil)
	}
	if err := validateCouponPayload(req); err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}

	now := time.Now()
	coupon := couponFromPayload(req)
	coupon.ID = uuid.New()
	coupon.CreatedAt = now
	coupon.UpdatedAt = now

	if err := s.store.Create(ctx, coupon); err != nil {
		return nil, err
	}

	s.log.WithField("coupon_code", coupon.Code).Info("Coupon created")
	return coupon, nil
}

// UpdateCoupon заменяет параметры купона. Снимки, уже лежащие в корзинах, не меняются.
func (s *CouponService) UpdateCoupon(ctx context.Context, code string, req *models.CouponPayload) (*models.Coupon, error) {
	if req == nil {
		return nil, apperror.Validation("request body is required", nil)
	}
	if err := validateCouponPayload(req); err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}

	coupon := couponFromPayload(req)
	coupon.Code = models.NormalizeCouponCode(code)
	coupon.UpdatedAt = time.Now()

	if err := s.store.Update(ctx, coupon); err != nil {
		return nil, err
	}
	s.invalidate(ctx, coupon.Code)

	s.log.WithField("coupon_code", coupon.Code).Info("Coupon updated")
	return s.store.GetByCode(ctx, coupon.Code)
}

// DeleteCoupon деактивирует купон. Погашения продолжают ссылаться на него.
func (s *CouponService) DeleteCoupon(ctx context.Context, code string) error {
	code = models.NormalizeCouponCode(code)
	if err := s.store.Deactivate(ctx, code); err != nil {
		return err
	}
	s.invalidate(ctx, code)

	s.log.WithField("coupon_code", code).Info("Coupon deactivated")
	return nil
}

// GetCoupon возвращает купон по коду напрямую из хранилища.
func (s *CouponService) GetCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	return s.store.GetByCode(ctx, models.NormalizeCouponCode(code))
}

// ListCoupons возвращает список купонов.
func (s *CouponService) ListCoupons(ctx context.Context, limit, offset int) ([]*models.Coupon, error) {
	return s.store.List(ctx, limit, offset)
}

// GetByCode читает купон для движка корзины: сначала кеш, затем хранилище.
// Ошибки кеша не мешают чтению.
func (s *CouponService) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	code = models.NormalizeCouponCode(code)
	key := redis.GenerateKey(redis.KeyPrefixCoupon, code)

	if s.cache != nil {
		var cached models.Coupon
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.log.WithError(err).WithField("key", key).Warn("Coupon cache read failed")
		}
	}

	coupon, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.Set(ctx, key, coupon, s.cacheTTL); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("Coupon cache write failed")
		}
	}
	return coupon, nil
}

// GetByID возвращает актуальное определение купона, минуя кеш.
func (s *CouponService) GetByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	return s.store.GetByID(ctx, id)
}

// GetStats возвращает статистику погашений купона.
func (s *CouponService) GetStats(ctx context.Context, code string) (*models.RedemptionStats, error) {
	coupon, err := s.store.GetByCode(ctx, models.NormalizeCouponCode(code))
	if err != nil {
		return nil, err
	}
	stats, err := s.ledger.Stats(ctx, coupon.ID)
	if err != nil {
		return nil, err
	}
	stats.Code = coupon.Code
	return stats, nil
}

// ListRedemptions возвращает записи журнала по купону, новые первыми.
func (s *CouponService) ListRedemptions(ctx context.Context, code string, limit, offset int) ([]*models.CouponRedemption, error) {
	coupon, err := s.store.GetByCode(ctx, models.NormalizeCouponCode(code))
	if err != nil {
		return nil, err
	}
	return s.ledger.ListByCoupon(ctx, coupon.ID, limit, offset)
}

func (s *CouponService) invalidate(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	key := redis.GenerateKey(redis.KeyPrefixCoupon, code)
	if err := s.cache.Delete(ctx, key); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Coupon cache invalidation failed")
	}
}

func couponFromPayload(req *models.CouponPayload) *models.Coupon {
	slugs := req.EligibleCategorySlugs
	if slugs == nil {
		slugs = []string{}
	}
	products := req.EligibleProductIDs
	if products == nil {
		products = []uuid.UUID{}
	}
	return &models.Coupon{
		Code:                  req.Code,
		DiscountType:          req.DiscountType,
		Value:                 req.Value,
		MaxDiscountAmount:     req.MaxDiscountAmount,
		MinSubtotal:           req.MinSubtotal,
		StartsAt:              req.StartsAt,
		EndsAt:                req.EndsAt,
		Active:                req.Active,
		UsageLimitTotal:       req.UsageLimitTotal,
		UsageLimitPerUser:     req.UsageLimitPerUser,
		EligibleProductIDs:    products,
		EligibleCategorySlugs: slugs,
	}
}

func validateCouponPayload(req *models.CouponPayload) error {
	switch req.DiscountType {
	case models.DiscountTypePercent:
		if !req.Value.IsPositive() || req.Value.GreaterThan(maxPercent) {
			return fmt.Errorf("percent value must be in (0, 100]")
		}
	case models.DiscountTypeFixed:
		if !req.Value.IsPositive() {
			return fmt.Errorf("fixed value must be positive")
		}
		if req.MaxDiscountAmount != nil {
			return fmt.Errorf("max_discount_amount applies to percent coupons only")
		}
	default:
		return fmt.Errorf("unsupported discount type: %s", req.DiscountType)
	}

	if req.MaxDiscountAmount != nil && req.MaxDiscountAmount.IsNegative() {
		return fmt.Errorf("max_discount_amount must be non-negative")
	}
	if req.MinSubtotal != nil && req.MinSubtotal.IsNegative() {
		return fmt.Errorf("min_subtotal must be non-negative")
	}
	if req.StartsAt != nil && req.EndsAt != nil && req.EndsAt.Before(*req.StartsAt) {
		return fmt.Errorf("ends_at must not be before starts_at")
	}
	if req.UsageLimitTotal != nil && *req.UsageLimitTotal < 0 {
		return fmt.Errorf("usage_limit_total must be non-negative")
	}
	if req.UsageLimitPerUser != nil && *req.UsageLimitPerUser < 0 {
		return fmt.Errorf("usage_limit_per_user must be non-negative")
	}
	return nil
}
