package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bookstore-cart/internal/apperror"
	"bookstore-cart/internal/database"
	"bookstore-cart/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const couponColumns = `id, code, discount_type, value, max_discount_amount, min_subtotal, starts_at, ends_at, active,
	usage_limit_total, usage_limit_per_user, eligible_product_ids, eligible_category_slugs, created_at, updated_at`

// CouponRepository читает и администрирует определения купонов.
type CouponRepository struct {
	db *database.DB
}

// NewCouponRepository создаёт репозиторий купонов.
func NewCouponRepository(db *database.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// Create сохраняет новый купон. Повтор кода даёт Conflict.
func (r *CouponRepository) Create(ctx context.Context, c *models.Coupon) error {
	query := `
		INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.Code, c.DiscountType, c.Value, nullDecimal(c.MaxDiscountAmount), nullDecimal(c.MinSubtotal),
		c.StartsAt, c.EndsAt, c.Active, nullInt(c.UsageLimitTotal), nullInt(c.UsageLimitPerUser),
		uuidArray(c.EligibleProductIDs), pq.StringArray(nonNilStrings(c.EligibleCategorySlugs)), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperror.Conflict("coupon code already exists", err)
		}
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	return nil
}

// Update заменяет параметры купона по коду.
func (r *CouponRepository) Update(ctx context.Context, c *models.Coupon) error {
	query := `
		UPDATE coupons
		SET discount_type = $2, value = $3, max_discount_amount = $4, min_subtotal = $5, starts_at = $6, ends_at = $7,
		    active = $8, usage_limit_total = $9, usage_limit_per_user = $10, eligible_product_ids = $11,
		    eligible_category_slugs = $12, updated_at = $13
		WHERE code = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		c.Code, c.DiscountType, c.Value, nullDecimal(c.MaxDiscountAmount), nullDecimal(c.MinSubtotal),
		c.StartsAt, c.EndsAt, c.Active, nullInt(c.UsageLimitTotal), nullInt(c.UsageLimitPerUser),
		uuidArray(c.EligibleProductIDs), pq.StringArray(nonNilStrings(c.EligibleCategorySlugs)), c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update coupon: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.WithReason(apperror.KindNotFound, apperror.ReasonCouponNotFound, "coupon not found", nil)
	}
	return nil
}

// Deactivate выключает купон. Строка остаётся, на неё ссылается журнал погашений.
func (r *CouponRepository) Deactivate(ctx context.Context, code string) error {
	result, err := r.db.ExecContext(ctx, "UPDATE coupons SET active = FALSE, updated_at = $2 WHERE code = $1", code, time.Now())
	if err != nil {
		return fmt.Errorf("failed to deactivate coupon: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.WithReason(apperror.KindNotFound, apperror.ReasonCouponNotFound, "coupon not found", nil)
	}
	return nil
}

// GetByCode возвращает купон по нормализованному коду.
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return r.getOne(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code)
}

// GetByID возвращает купон по идентификатору.
func (r *CouponRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	return r.getOne(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1`, id)
}

func (r *CouponRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Coupon, error) {
	c, err := scanCoupon(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.WithReason(apperror.KindNotFound, apperror.ReasonCouponNotFound, "coupon not found", err)
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return c, nil
}

// List возвращает купоны, новые первыми.
func (r *CouponRepository) List(ctx context.Context, limit, offset int) ([]*models.Coupon, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	coupons := []*models.Coupon{}
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate coupons: %w", err)
	}
	return coupons, nil
}

func scanCoupon(row rowScanner) (*models.Coupon, error) {
	var (
		c             models.Coupon
		maxDiscount   decimal.NullDecimal
		minSubtotal   decimal.NullDecimal
		startsAt      sql.NullTime
		endsAt        sql.NullTime
		limitTotal    sql.NullInt64
		limitPerUser  sql.NullInt64
		productIDs    pq.StringArray
		categorySlugs pq.StringArray
	)
	if err := row.Scan(&c.ID, &c.Code, &c.DiscountType, &c.Value, &maxDiscount, &minSubtotal, &startsAt, &endsAt,
		&c.Active, &limitTotal, &limitPerUser, &productIDs, &categorySlugs, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}

	if maxDiscount.Valid {
		v := maxDiscount.Decimal
		c.MaxDiscountAmount = &v
	}
	if minSubtotal.Valid {
		v := minSubtotal.Decimal
		c.MinSubtotal = &v
	}
	if startsAt.Valid {
		v := startsAt.Time
		c.StartsAt = &v
	}
	if endsAt.Valid {
		v := endsAt.Time
		c.EndsAt = &v
	}
	if limitTotal.Valid {
		v := int(limitTotal.Int64)
		c.UsageLimitTotal = &v
	}
	if limitPerUser.Valid {
		v := int(limitPerUser.Int64)
		c.UsageLimitPerUser = &v
	}

	c.EligibleProductIDs = make([]uuid.UUID, 0, len(productIDs))
	for _, raw := range productIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid eligible product id %q: %w", raw, err)
		}
		c.EligibleProductIDs = append(c.EligibleProductIDs, id)
	}
	c.EligibleCategorySlugs = nonNilStrings(categorySlugs)

	return &c, nil
}

func nullDecimal(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func uuidArray(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
