package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bookstore-cart/internal/apperror"
	"bookstore-cart/internal/database"
	"bookstore-cart/internal/models"

	"github.com/google/uuid"
)

// ProductCatalog даёт read-only доступ к каталогу товаров.
type ProductCatalog struct {
	db *database.DB
}

// NewProductCatalog создаёт адаптер каталога.
func NewProductCatalog(db *database.DB) *ProductCatalog {
	return &ProductCatalog{db: db}
}

// GetProduct возвращает цену, категорию и наличие товара.
func (c *ProductCatalog) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	query := `SELECT id, title, price, category_slug, in_stock FROM products WHERE id = $1`

	p := &models.Product{}
	if err := c.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Title, &p.Price, &p.CategorySlug, &p.InStock); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.WithReason(apperror.KindValidation, apperror.ReasonUnknownProduct, "unknown product", err)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}
