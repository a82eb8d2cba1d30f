package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bookstore-cart/internal/apperror"
	"bookstore-cart/internal/database"
	"bookstore-cart/internal/models"

	"github.com/google/uuid"
)

const cartColumns = `user_id, items, coupon, subtotal, discount_total, total, expires_at, created_at, updated_at`

// CartMutation изменяет корзину внутри транзакции. Ошибка откатывает все изменения.
type CartMutation func(cart *models.Cart) error

// CartRepository хранит корзину одной строкой на пользователя.
// Позиции и снимок купона лежат в JSONB, поэтому один UPDATE заменяет агрегат целиком.
type CartRepository struct {
	db *database.DB
}

// NewCartRepository создаёт репозиторий корзин.
func NewCartRepository(db *database.DB) *CartRepository {
	return &CartRepository{db: db}
}

// Get возвращает корзину пользователя без блокировки.
func (r *CartRepository) Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts WHERE user_id = $1`
	cart, err := scanCart(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.WithReason(apperror.KindNotFound, apperror.ReasonCartNotFound, "cart not found", err)
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return cart, nil
}

// Mutate блокирует строку корзины (SELECT ... FOR UPDATE), применяет fn и записывает результат.
// Конкурентные изменения одной корзины выполняются последовательно.
// При create=true отсутствующая корзина создаётся в той же транзакции.
func (r *CartRepository) Mutate(ctx context.Context, userID uuid.UUID, create bool, fn CartMutation) (*models.Cart, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if create {
		insertQuery := `
			INSERT INTO carts (user_id, items, subtotal, discount_total, total, expires_at, created_at, updated_at)
			VALUES ($1, '[]', 0, 0, 0, $2, $2, $2)
			ON CONFLICT (user_id) DO NOTHING
		`
		if _, err := tx.ExecContext(ctx, insertQuery, userID, time.Now()); err != nil {
			return nil, fmt.Errorf("failed to create cart: %w", err)
		}
	}

	selectQuery := `SELECT ` + cartColumns + ` FROM carts WHERE user_id = $1 FOR UPDATE`
	cart, err := scanCart(tx.QueryRowContext(ctx, selectQuery, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.WithReason(apperror.KindNotFound, apperror.ReasonCartNotFound, "cart not found", err)
		}
		return nil, fmt.Errorf("failed to lock cart: %w", err)
	}

	if err := fn(cart); err != nil {
		return nil, err
	}

	itemsJSON, couponJSON, err := encodeCartDocument(cart)
	if err != nil {
		return nil, err
	}

	updateQuery := `
		UPDATE carts
		SET items = $2, coupon = $3, subtotal = $4, discount_total = $5, total = $6, expires_at = $7, updated_at = $8
		WHERE user_id = $1
	`
	if _, err := tx.ExecContext(ctx, updateQuery, userID, itemsJSON, couponJSON,
		cart.Subtotal, cart.DiscountTotal, cart.Total, cart.ExpiresAt, cart.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to update cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cart update: %w", err)
	}

	return cart, nil
}

// DeleteExpired удаляет корзины с истёкшим сроком жизни.
// Условие проверяется в самом DELETE, поэтому корзина, продлённая после расчёта before, не удаляется.
func (r *CartRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM carts WHERE expires_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired carts: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCart(row rowScanner) (*models.Cart, error) {
	var (
		cart       models.Cart
		itemsJSON  []byte
		couponJSON []byte
	)
	if err := row.Scan(&cart.UserID, &itemsJSON, &couponJSON, &cart.Subtotal, &cart.DiscountTotal,
		&cart.Total, &cart.ExpiresAt, &cart.CreatedAt, &cart.UpdatedAt); err != nil {
		return nil, err
	}

	cart.Items = []models.CartItem{}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &cart.Items); err != nil {
			return nil, fmt.Errorf("failed to decode cart items: %w", err)
		}
	}
	if len(couponJSON) > 0 && string(couponJSON) != "null" {
		var snap models.CouponSnapshot
		if err := json.Unmarshal(couponJSON, &snap); err != nil {
			return nil, fmt.Errorf("failed to decode cart coupon: %w", err)
		}
		cart.Coupon = &snap
	}
	return &cart, nil
}

// encodeCartDocument сериализует JSONB-поля. lib/pq передаёт []byte как bytea, поэтому отдаём строки.
func encodeCartDocument(cart *models.Cart) (string, interface{}, error) {
	items := cart.Items
	if items == nil {
		items = []models.CartItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode cart items: %w", err)
	}

	var couponJSON interface{}
	if cart.Coupon != nil {
		data, err := json.Marshal(cart.Coupon)
		if err != nil {
			return "", nil, fmt.Errorf("failed to encode cart coupon: %w", err)
		}
		couponJSON = string(data)
	}
	return string(itemsJSON), couponJSON, nil
}
