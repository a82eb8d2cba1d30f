package services

import (
	"context"
	"sync"
	"time"

	"bookstore-cart/internal/apperror"
	"bookstore-cart/internal/config"
	"bookstore-cart/internal/logger"
	"bookstore-cart/internal/models"
	"bookstore-cart/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newQuietLogger() *logger.Logger {
	return logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
}

// memoryCartStore повторяет семантику CartRepository: изменение применяется целиком или не применяется.
type memoryCartStore struct {
	mu    sync.Mutex
	carts map[uuid.UUID]*models.Cart
}

func newMemoryCartStore() *memoryCartStore {
	return &memoryCartStore{carts: make(map[uuid.UUID]*models.Cart)}
}

func (m *memoryCartStore) Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil, cartNotFound()
	}
	return c.Clone(), nil
}

func (m *memoryCartStore) Mutate(ctx context.Context, userID uuid.UUID, create bool, fn repository.CartMutation) (*models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.carts[userID]
	if !ok {
		if !create {
			return nil, cartNotFound()
		}
		now := time.Now()
		current = &models.Cart{UserID: userID, Items: []models.CartItem{}, ExpiresAt: now, CreatedAt: now, UpdatedAt: now}
	}

	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	m.carts[userID] = working.Clone()
	return working, nil
}

func (m *memoryCartStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, c := range m.carts {
		if c.ExpiresAt.Before(before) {
			delete(m.carts, id)
			removed++
		}
	}
	return removed, nil
}

func (m *memoryCartStore) put(c *models.Cart) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[c.UserID] = c.Clone()
}

type fakeCatalog struct {
	products map[uuid.UUID]*models.Product
}

func (f *fakeCatalog) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, apperror.WithReason(apperror.KindValidation, apperror.ReasonUnknownProduct, "unknown product", nil)
	}
	cp := *p
	return &cp, nil
}

type fakeCoupons struct {
	mu    sync.Mutex
	byKey map[string]*models.Coupon
}

func newFakeCoupons(coupons ...*models.Coupon) *fakeCoupons {
	f := &fakeCoupons{byKey: make(map[string]*models.Coupon)}
	for _, c := range coupons {
		f.byKey[c.Code] = c
	}
	return f
}

func (f *fakeCoupons) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byKey[code]
	if !ok {
		return nil, apperror.WithReason(apperror.KindNotFound, apperror.ReasonCouponNotFound, "coupon not found", nil)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCoupons) GetByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.byKey {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperror.WithReason(apperror.KindNotFound, apperror.ReasonCouponNotFound, "coupon not found", nil)
}

// memoryLedger: журнал погашений с уникальностью (order_id, coupon_id).
type memoryLedger struct {
	mu      sync.Mutex
	entries []*models.CouponRedemption
	findErr error
	// missFinds: столько первых вызовов Find не видят записей, как при чтении до чужого коммита
	missFinds int
}

func (l *memoryLedger) Commit(ctx context.Context, r *models.CouponRedemption) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.OrderID == r.OrderID && e.CouponID == r.CouponID {
			return apperror.Duplicate("coupon already redeemed for this order", nil)
		}
	}
	cp := *r
	l.entries = append(l.entries, &cp)
	return nil
}

func (l *memoryLedger) Find(ctx context.Context, orderID, couponID uuid.UUID) (*models.CouponRedemption, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.findErr != nil {
		return nil, l.findErr
	}
	if l.missFinds > 0 {
		l.missFinds--
		return nil, apperror.NotFound("redemption not found", nil)
	}
	for _, e := range l.entries {
		if e.OrderID == orderID && e.CouponID == couponID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("redemption not found", nil)
}

func (l *memoryLedger) CountTotal(ctx context.Context, couponID uuid.UUID) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.CouponID == couponID {
			n++
		}
	}
	return n, nil
}

func (l *memoryLedger) CountForUser(ctx context.Context, couponID, userID uuid.UUID) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.CouponID == couponID && e.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (l *memoryLedger) Stats(ctx context.Context, couponID uuid.UUID) (*models.RedemptionStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stats := &models.RedemptionStats{CouponID: couponID, TotalDiscount: decimal.Zero}
	users := map[uuid.UUID]struct{}{}
	for _, e := range l.entries {
		if e.CouponID != couponID {
			continue
		}
		stats.Redemptions++
		users[e.UserID] = struct{}{}
		stats.TotalDiscount = stats.TotalDiscount.Add(e.DiscountAmount)
	}
	stats.UniqueUsers = len(users)
	return stats, nil
}

func (l *memoryLedger) ListByCoupon(ctx context.Context, couponID uuid.UUID, limit, offset int) ([]*models.CouponRedemption, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []*models.CouponRedemption{}
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].CouponID == couponID {
			cp := *l.entries[i]
			out = append(out, &cp)
		}
	}
	if offset >= len(out) {
		return []*models.CouponRedemption{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	applied  []string
	cleared  []uuid.UUID
	expired  []int64
	redeemed []*models.CouponRedemption
}

func (p *recordingPublisher) PublishCouponApplied(userID uuid.UUID, coupon *models.CouponSnapshot, discount decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applied = append(p.applied, coupon.Code)
	return nil
}

func (p *recordingPublisher) PublishCartCleared(userID uuid.UUID, orderID *uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared = append(p.cleared, userID)
	return nil
}

func (p *recordingPublisher) PublishCartsExpired(removed int64, before time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expired = append(p.expired, removed)
	return nil
}

func (p *recordingPublisher) PublishCouponRedeemed(r *models.CouponRedemption) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.redeemed = append(p.redeemed, r)
	return nil
}
