package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bookstore-cart/internal/config"
	"bookstore-cart/internal/logger"

	_ "github.com/lib/pq"
)

// DB оборачивает пул соединений PostgreSQL
type DB struct {
	*sql.DB
	log *logger.Logger
}

// DSN собирает строку подключения из конфигурации
func DSN(cfg *config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// Connect создает подключение к базе данных и проверяет его
func Connect(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	sqlDB, err := sql.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxOpenConns / 2)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"host":   cfg.Host,
		"dbname": cfg.DBName,
	}).Info("Successfully connected to database")

	return &DB{DB: sqlDB, log: log}, nil
}

// Close закрывает подключение к базе данных
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	return db.DB.Close()
}

// Health проверяет доступность базы данных
func (db *DB) Health() error {
	if db == nil || db.DB == nil {
		return fmt.Errorf("database is not initialized")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}
