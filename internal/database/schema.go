package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SchemaVersion номер последней встроенной миграции
const SchemaVersion uint = 1

// RequiredTables без них не работают корзины и журнал погашений
var RequiredTables = []string{"carts", "coupons", "coupon_redemptions"}

// SchemaState состояние схемы по таблице golang-migrate
type SchemaState struct {
	Version uint     `json:"version"`
	Dirty   bool     `json:"dirty"`
	Missing []string `json:"missing_tables,omitempty"`
}

// Ready возвращает ошибку, если схема не доведена до SchemaVersion
func (s *SchemaState) Ready() error {
	switch {
	case s.Dirty:
		return fmt.Errorf("migration %d is dirty", s.Version)
	case s.Version < SchemaVersion:
		return fmt.Errorf("schema version %d, want %d", s.Version, SchemaVersion)
	case len(s.Missing) > 0:
		return fmt.Errorf("missing tables: %s", strings.Join(s.Missing, ", "))
	}
	return nil
}

// Schema читает версию миграций и проверяет наличие таблиц корзины и журнала
func (db *DB) Schema(ctx context.Context) (*SchemaState, error) {
	if db == nil || db.DB == nil {
		return nil, fmt.Errorf("database is not initialized")
	}

	state := &SchemaState{}
	err := db.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).
		Scan(&state.Version, &state.Dirty)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, table := range RequiredTables {
		var name sql.NullString
		if err := db.QueryRowContext(ctx, `SELECT to_regclass($1)::text`, table).Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if !name.Valid {
			state.Missing = append(state.Missing, table)
		}
	}
	return state, nil
}
