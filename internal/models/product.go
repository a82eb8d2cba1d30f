package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product представляет проекцию товара каталога, нужная для расчёта корзины
type Product struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	Title        string          `json:"title" db:"title"`
	Price        decimal.Decimal `json:"price" db:"price"`
	CategorySlug string          `json:"category_slug" db:"category_slug"`
	InStock      bool            `json:"in_stock" db:"in_stock"`
}

// Role пользователя. RoleService выдаётся сервису заказов для вызова оформления.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	RoleService  Role = "service"
)

// User представляет аутентифицированного владельца корзины
type User struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}
