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
	"github.com/shopspring/decimal"
)

const redemptionColumns = `id, coupon_id, user_id, order_id, code, discount_amount, redeemed_at`

// RedemptionLedger хранит журнал погашений купонов, только добавление.
// Единственный источник счётчиков использования.
type RedemptionLedger struct {
	db *database.DB
}

// NewRedemptionLedger создаёт журнал погашений.
func NewRedemptionLedger(db *database.DB) *RedemptionLedger {
	return &RedemptionLedger{db: db}
}

// Commit атомарно вставляет погашение, если для пары (order_id, coupon_id) его ещё нет.
// Повторная попытка возвращает ошибку вида KindDuplicate.
func (l *RedemptionLedger) Commit(ctx context.Context, r *models.CouponRedemption) error {
	if r.OrderID == uuid.Nil {
		return apperror.Validation("order id is required to commit a redemption", nil)
	}
	if r.CouponID == uuid.Nil || r.UserID == uuid.Nil {
		return apperror.Validation("coupon id and user id are required", nil)
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.RedeemedAt.IsZero() {
		r.RedeemedAt = time.Now()
	}

	query := `
		INSERT INTO coupon_redemptions (` + redemptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id, coupon_id) DO NOTHING
	`
	result, err := l.db.ExecContext(ctx, query, r.ID, r.CouponID, r.UserID, r.OrderID, r.Code, r.DiscountAmount, r.RedeemedAt)
	if err != nil {
		return fmt.Errorf("failed to insert redemption: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.Duplicate("coupon already redeemed for this order", nil)
	}
	return nil
}

// CountTotal возвращает число погашений купона.
func (l *RedemptionLedger) CountTotal(ctx context.Context, couponID uuid.UUID) (int, error) {
	var count int
	if err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM coupon_redemptions WHERE coupon_id = $1", couponID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count redemptions: %w", err)
	}
	return count, nil
}

// CountForUser возвращает число погашений купона пользователем.
func (l *RedemptionLedger) CountForUser(ctx context.Context, couponID, userID uuid.UUID) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM coupon_redemptions WHERE coupon_id = $1 AND user_id = $2"
	if err := l.db.QueryRowContext(ctx, query, couponID, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count user redemptions: %w", err)
	}
	return count, nil
}

// Find возвращает погашение для заказа и купона или NotFound.
func (l *RedemptionLedger) Find(ctx context.Context, orderID, couponID uuid.UUID) (*models.CouponRedemption, error) {
	query := `SELECT ` + redemptionColumns + ` FROM coupon_redemptions WHERE order_id = $1 AND coupon_id = $2`
	r, err := scanRedemption(l.db.QueryRowContext(ctx, query, orderID, couponID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("redemption not found", err)
		}
		return nil, fmt.Errorf("failed to get redemption: %w", err)
	}
	return r, nil
}

// ListByCoupon возвращает погашения купона, последние первыми.
func (l *RedemptionLedger) ListByCoupon(ctx context.Context, couponID uuid.UUID, limit, offset int) ([]*models.CouponRedemption, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + redemptionColumns + ` FROM coupon_redemptions WHERE coupon_id = $1 ORDER BY redeemed_at DESC LIMIT $2 OFFSET $3`
	rows, err := l.db.QueryContext(ctx, query, couponID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list redemptions: %w", err)
	}
	defer rows.Close()

	list := []*models.CouponRedemption{}
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate redemptions: %w", err)
	}
	return list, nil
}

// Stats агрегирует журнал по купону.
func (l *RedemptionLedger) Stats(ctx context.Context, couponID uuid.UUID) (*models.RedemptionStats, error) {
	query := `
		SELECT COUNT(*), COUNT(DISTINCT user_id), COALESCE(SUM(discount_amount), 0), MAX(redeemed_at)
		FROM coupon_redemptions
		WHERE coupon_id = $1
	`
	stats := &models.RedemptionStats{CouponID: couponID}
	var (
		total decimal.Decimal
		last  sql.NullTime
	)
	if err := l.db.QueryRowContext(ctx, query, couponID).Scan(&stats.Redemptions, &stats.UniqueUsers, &total, &last); err != nil {
		return nil, fmt.Errorf("failed to get redemption stats: %w", err)
	}
	stats.TotalDiscount = total
	if last.Valid {
		t := last.Time
		stats.LastRedeemed = &t
	}
	return stats, nil
}

func scanRedemption(row rowScanner) (*models.CouponRedemption, error) {
	var r models.CouponRedemption
	if err := row.Scan(&r.ID, &r.CouponID, &r.UserID, &r.OrderID, &r.Code, &r.DiscountAmount, &r.RedeemedAt); err != nil {
		return nil, err
	}
	return &r, nil
}
