package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bookstore-cart/internal/config"
	"bookstore-cart/internal/logger"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss возвращается, когда ключ отсутствует
var ErrCacheMiss = errors.New("cache miss")

// Client представляет клиент Redis
type Client struct {
	client *redis.Client
	log    *logger.Logger
}

// Connect создает подключение к Redis
func Connect(cfg *config.RedisConfig, log *logger.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Successfully connected to Redis")

	return &Client{
		client: rdb,
		log:    log,
	}, nil
}

// Close закрывает подключение к Redis
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Set сохраняет значение в JSON с TTL
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}

	c.log.WithField("key", key).Debug("Value set in Redis")
	return nil
}

// Get читает значение по ключу. Отсутствующий ключ даёт ErrCacheMiss.
func (c *Client) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("key %s: %w", key, ErrCacheMiss)
		}
		return fmt.Errorf("failed to get key %s: %w", key, err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return fmt.Errorf("failed to unmarshal value for key %s: %w", key, err)
	}

	c.log.WithField("key", key).Debug("Value retrieved from Redis")
	return nil
}

// Delete удаляет значение по ключу
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}

	c.log.WithField("key", key).Debug("Key deleted from Redis")
	return nil
}

// IncrWindow увеличивает счётчик окна и возвращает его значение с остатком TTL.
// TTL ставится только при первом обращении, поэтому окно не сдвигается.
func (c *Client) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to incr window %s: %w", key, err)
	}

	left := ttl.Val()
	if left < 0 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return incr.Val(), 0, fmt.Errorf("failed to set ttl for key %s: %w", key, err)
		}
		left = window
	}
	return incr.Val(), left, nil
}

// PeekWindow читает счётчик окна без изменения. Отсутствующий ключ даёт ErrCacheMiss.
func (c *Client) PeekWindow(ctx context.Context, key string) (int64, time.Duration, error) {
	val, err := c.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, 0, fmt.Errorf("key %s: %w", key, ErrCacheMiss)
		}
		return 0, 0, fmt.Errorf("failed to read window %s: %w", key, err)
	}

	ttl, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		return val, 0, fmt.Errorf("failed to get ttl for key %s: %w", key, err)
	}
	return val, ttl, nil
}

// Health проверяет состояние Redis
func (c *Client) Health(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("redis client is not initialized")
	}
	return c.client.Ping(ctx).Err()
}

// GenerateKey генерирует ключ для кеша
func GenerateKey(prefix, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}

// Префиксы ключей
const (
	KeyPrefixCoupon    = "coupon"
	KeyPrefixRateLimit = "ratelimit"
)
