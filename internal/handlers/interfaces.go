package handlers

import (
	"context"

	"bookstore-cart/internal/database"
	"bookstore-cart/internal/models"

	"github.com/google/uuid"
)

// ----- Cart -----

type CartService interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*models.CartView, error)
	AddItem(ctx context.Context, userID uuid.UUID, req *models.AddCartItemRequest) (*models.CartView, error)
	SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartView, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*models.CartView, error)
	ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (*models.CartView, error)
	RemoveCoupon(ctx context.Context, userID uuid.UUID) (*models.CartView, error)
	Clear(ctx context.Context, userID uuid.UUID) (*models.CartView, error)
}

// ----- Checkout -----

type Finalizer interface {
	Finalize(ctx context.Context, req *models.FinalizeRequest) (*models.FinalizeResult, error)
}

// ----- Coupons -----

type CouponAdmin interface {
	CreateCoupon(ctx context.Context, req *models.CouponPayload) (*models.Coupon, error)
	UpdateCoupon(ctx context.Context, code string, req *models.CouponPayload) (*models.Coupon, error)
	DeleteCoupon(ctx context.Context, code string) error
	GetCoupon(ctx context.Context, code string) (*models.Coupon, error)
	ListCoupons(ctx context.Context, limit, offset int) ([]*models.Coupon, error)
	GetStats(ctx context.Context, code string) (*models.RedemptionStats, error)
	ListRedemptions(ctx context.Context, code string, limit, offset int) ([]*models.CouponRedemption, error)
}

// ----- Auth -----

type TokenVerifier interface {
	Verify(token string) (*models.User, error)
}

// ----- Health -----

type StoreHealth interface {
	Health() error
	Schema(ctx context.Context) (*database.SchemaState, error)
}

type CacheHealth interface {
	Health(ctx context.Context) error
}
