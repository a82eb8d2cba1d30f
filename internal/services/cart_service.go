package services

import (
	"context"
	"time"

	"bookstore-cart/internal/apperror"
	"bookstore-cart/internal/logger"
	"bookstore-cart/internal/models"
	"bookstore-cart/internal/repository"

	"github.com/google/uuid"
)

// CartStore хранит корзины и сериализует их изменения.
type CartStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	Mutate(ctx context.Context, userID uuid.UUID, create bool, fn repository.CartMutation) (*models.Cart, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// ProductLookup читает цену и наличие товара из каталога.
type ProductLookup interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// CouponLookup находит купон по нормализованному коду.
type CouponLookup interface {
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
}

// CartService управляет корзиной пользователя
type CartService struct {
	store     CartStore
	catalog   ProductLookup
	coupons   CouponLookup
	validator *CouponValidator
	pricing   *PricingService
	publisher EventPublisher
	log       *logger.Logger
	ttl       time.Duration
}

// NewCartService создает сервис корзины
func NewCartService(store CartStore, catalog ProductLookup, coupons CouponLookup, validator *CouponValidator,
	pricing *PricingService, publisher EventPublisher, log *logger.Logger, ttl time.Duration) *CartService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &CartService{
		store:     store,
		catalog:   catalog,
		coupons:   coupons,
		validator: validator,
		pricing:   pricing,
		publisher: publisherOrNoop(publisher),
		log:       log,
		ttl:       ttl,
	}
}

// GetCart возвращает корзину пользователя. Отсутствующая или просроченная корзина отдаётся пустой.
func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*models.CartView, error) {
	cart, err := s.load(ctx, userID)
	if err != nil {
		if apperror.ReasonOf(err) != apperror.ReasonCartNotFound {
			return nil, err
		}
		cart = &models.Cart{UserID: userID, Items: []models.CartItem{}}
	}
	return view(cart), nil
}

// Snapshot возвращает независимую копию корзины для оформления заказа.
func (s *CartService) Snapshot(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return cart.Clone(), nil
}

// AddItem добавляет товар или увеличивает количество существующей позиции.
// Цена и категория фиксируются при первом добавлении.
func (s *CartService) AddItem(ctx context.Context, userID uuid.UUID, req *models.AddCartItemRequest) (*models.CartView, error) {
	if req == nil || req.ProductID == uuid.Nil {
		return nil, apperror.Validation("product_id is required", nil)
	}
	if req.Quantity < 1 {
		return nil, invalidQuantity()
	}

	product, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.InStock {
		return nil, apperror.WithReason(apperror.KindValidation, apperror.ReasonOutOfStock, "product is out of stock", nil)
	}

	cart, err := s.store.Mutate(ctx, userID, true, func(c *models.Cart) error {
		now := nowFunc()
		if c.ExpiresAt.Before(now) && len(c.Items) > 0 {
			// просроченная, но ещё не удалённая корзина начинает жизнь заново
			c.Items = []models.CartItem{}
			c.Coupon = nil
		}

		if idx := c.FindItem(product.ID); idx >= 0 {
			c.Items[idx].Quantity += req.Quantity
		} else {
			c.Items = append(c.Items, models.CartItem{
				ProductID:    product.ID,
				Title:        product.Title,
				CategorySlug: product.CategorySlug,
				Quantity:     req.Quantity,
				Price:        product.Price,
				AddedAt:      now,
			})
		}
		s.recompute(c, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(map[string]interface{}{
		"user_id":    userID,
		"product_id": product.ID,
		"quantity":   req.Quantity,
	}).Debug("Item added to cart")

	return view(cart), nil
}

// RemoveItem удаляет позицию. Последняя удалённая позиция снимает и купон.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*models.CartView, error) {
	cart, err := s.mutateExisting(ctx, userID, func(c *models.Cart, now time.Time) error {
		idx := c.FindItem(productID)
		if idx < 0 {
			return itemNotFound()
		}
		c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
		s.recompute(c, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view(cart), nil
}

// SetQuantity заменяет количество позиции.
func (s *CartService) SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartView, error) {
	if quantity < 1 {
		return nil, invalidQuantity()
	}

	cart, err := s.mutateExisting(ctx, userID, func(c *models.Cart, now time.Time) error {
		idx := c.FindItem(productID)
		if idx < 0 {
			return itemNotFound()
		}
		c.Items[idx].Quantity = quantity
		s.recompute(c, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view(cart), nil
}

// ApplyCoupon проверяет купон против текущего состояния корзины и сохраняет его снимок.
// Ранее применённый купон заменяется. При отказе корзина не меняется.
func (s *CartService) ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (*models.CartView, error) {
	code = models.NormalizeCouponCode(code)
	if code == "" {
		return nil, apperror.Validation("coupon code is required", nil)
	}

	coupon, err := s.coupons.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	var snapshot *models.CouponSnapshot
	cart, err := s.mutateExisting(ctx, userID, func(c *models.Cart, now time.Time) error {
		// проверка идёт под блокировкой строки, по позициям на момент применения
		if _, err := s.validator.Validate(ctx, coupon, userID, c); err != nil {
			return err
		}
		snapshot = models.NewCouponSnapshot(coupon, now)
		c.Coupon = snapshot
		s.recompute(c, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.publisher.PublishCouponApplied(userID, snapshot, cart.DiscountTotal); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("Failed to publish coupon applied event")
	}

	s.log.WithFields(map[string]interface{}{
		"user_id":  userID,
		"code":     code,
		"discount": cart.DiscountTotal.String(),
	}).Info("Coupon applied to cart")

	return view(cart), nil
}

// RemoveCoupon снимает купон с корзины.
func (s *CartService) RemoveCoupon(ctx context.Context, userID uuid.UUID) (*models.CartView, error) {
	cart, err := s.mutateExisting(ctx, userID, func(c *models.Cart, now time.Time) error {
		c.Coupon = nil
		s.recompute(c, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view(cart), nil
}

// Clear очищает позиции и купон. Строка корзины остаётся.
func (s *CartService) Clear(ctx context.Context, userID uuid.UUID) (*models.CartView, error) {
	return s.clear(ctx, userID, nil)
}

// ClearAfterOrder очищает корзину после оформления заказа. Отсутствующая корзина не считается ошибкой.
func (s *CartService) ClearAfterOrder(ctx context.Context, userID, orderID uuid.UUID) error {
	_, err := s.clear(ctx, userID, &orderID)
	if err != nil && apperror.ReasonOf(err) == apperror.ReasonCartNotFound {
		return nil
	}
	return err
}

func (s *CartService) clear(ctx context.Context, userID uuid.UUID, orderID *uuid.UUID) (*models.CartView, error) {
	cart, err := s.store.Mutate(ctx, userID, false, func(c *models.Cart) error {
		c.Items = []models.CartItem{}
		c.Coupon = nil
		s.recompute(c, nowFunc())
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.publisher.PublishCartCleared(userID, orderID); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("Failed to publish cart cleared event")
	}
	return view(cart), nil
}

// mutateExisting изменяет действующую корзину. Просроченная корзина считается отсутствующей.
func (s *CartService) mutateExisting(ctx context.Context, userID uuid.UUID, fn func(c *models.Cart, now time.Time) error) (*models.Cart, error) {
	return s.store.Mutate(ctx, userID, false, func(c *models.Cart) error {
		now := nowFunc()
		if !c.ExpiresAt.After(now) {
			return cartNotFound()
		}
		return fn(c, now)
	})
}

func (s *CartService) load(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !cart.ExpiresAt.After(nowFunc()) {
		return nil, cartNotFound()
	}
	return cart, nil
}

// recompute пересчитывает итоги по текущим позициям и продлевает срок жизни корзины.
func (s *CartService) recompute(c *models.Cart, now time.Time) {
	if len(c.Items) == 0 {
		c.Coupon = nil
	}
	totals := s.pricing.ComputeTotals(c.Items, c.Coupon)
	c.Subtotal = totals.Subtotal
	c.DiscountTotal = totals.DiscountTotal
	c.Total = totals.Total
	c.ExpiresAt = now.Add(s.ttl)
	c.UpdatedAt = now
}

func view(c *models.Cart) *models.CartView {
	if c.Items == nil {
		c.Items = []models.CartItem{}
	}
	return &models.CartView{Cart: c, Status: c.State()}
}

func invalidQuantity() error {
	return apperror.WithReason(apperror.KindValidation, apperror.ReasonInvalidQuantity, "quantity must be at least 1", nil)
}

func itemNotFound() error {
	return apperror.WithReason(apperror.KindNotFound, apperror.ReasonItemNotFound, "item not found in cart", nil)
}

func cartNotFound() error {
	return apperror.WithReason(apperror.KindNotFound, apperror.ReasonCartNotFound, "cart not found", nil)
}
