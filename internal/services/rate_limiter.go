package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"bookstore-cart/internal/config"
	"bookstore-cart/internal/logger"
	"bookstore-cart/internal/redis"
)

// Scope группа маршрутов с отдельным счётчиком.
// ScopeCoupon считает попытки применить код и ограничен отдельным лимитом.
type Scope string

const (
	ScopeCart   Scope = "cart"
	ScopeCoupon Scope = "coupon"
	ScopeAdmin  Scope = "admin"
)

// Quota состояние окна для пары scope/субъект
type Quota struct {
	Scope     Scope      `json:"scope"`
	Subject   string     `json:"subject"`
	Limit     int64      `json:"limit"`
	Used      int64      `json:"used"`
	Remaining int64      `json:"remaining"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
}

// Exceeded сообщает, что запрос вышел за лимит окна
func (q Quota) Exceeded() bool {
	return q.Used > q.Limit
}

type windowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	PeekWindow(ctx context.Context, key string) (int64, time.Duration, error)
}

// RateLimiter ведёт счётчики фиксированного окна в Redis по scope и субъекту.
// Без Redis лимиты выключены.
type RateLimiter struct {
	counter windowCounter
	log     *logger.Logger
	window  time.Duration
	limits  map[Scope]int64
	prefix  string
}

// NewRateLimiter создаёт limiter. Попытки применить купон ограничены cfg.CouponAttempts.
func NewRateLimiter(redisClient *redis.Client, log *logger.Logger, cfg *config.RateLimitConfig) *RateLimiter {
	if redisClient == nil || cfg == nil || !cfg.Enabled || cfg.Requests <= 0 || cfg.WindowSeconds <= 0 {
		return &RateLimiter{}
	}

	coupon := cfg.CouponAttempts
	if coupon <= 0 || coupon > cfg.Requests {
		coupon = cfg.Requests
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = redis.KeyPrefixRateLimit
	}

	return &RateLimiter{
		counter: redisClient,
		log:     log,
		window:  time.Duration(cfg.WindowSeconds) * time.Second,
		limits: map[Scope]int64{
			ScopeCart:   int64(cfg.Requests),
			ScopeCoupon: int64(coupon),
			ScopeAdmin:  int64(cfg.Requests),
		},
		prefix: prefix,
	}
}

// Enabled сообщает, включены ли лимиты
func (r *RateLimiter) Enabled() bool {
	return r != nil && r.counter != nil
}

// Take учитывает запрос и возвращает состояние окна
func (r *RateLimiter) Take(ctx context.Context, scope Scope, subject string) (Quota, error) {
	q := Quota{Scope: scope, Subject: subject, Limit: r.limitFor(scope)}
	if !r.Enabled() {
		q.Remaining = q.Limit
		return q, nil
	}

	used, ttl, err := r.counter.IncrWindow(ctx, r.key(scope, subject), r.window)
	if err != nil {
		return q, fmt.Errorf("rate limit %s: %w", scope, err)
	}
	return r.fill(q, used, ttl), nil
}

// Peek возвращает состояние окна, не учитывая запрос
func (r *RateLimiter) Peek(ctx context.Context, scope Scope, subject string) (Quota, error) {
	q := Quota{Scope: scope, Subject: subject, Limit: r.limitFor(scope), Remaining: r.limitFor(scope)}
	if !r.Enabled() {
		return q, nil
	}

	used, ttl, err := r.counter.PeekWindow(ctx, r.key(scope, subject))
	if err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			return q, nil
		}
		return q, fmt.Errorf("rate limit %s: %w", scope, err)
	}
	return r.fill(q, used, ttl), nil
}

func (r *RateLimiter) fill(q Quota, used int64, ttl time.Duration) Quota {
	q.Used = used
	q.Remaining = q.Limit - used
	if q.Remaining < 0 {
		q.Remaining = 0
	}
	if ttl > 0 {
		reset := nowFunc().Add(ttl)
		q.ResetAt = &reset
	}
	return q
}

func (r *RateLimiter) limitFor(scope Scope) int64 {
	if r == nil {
		return 0
	}
	return r.limits[scope]
}

// key: <prefix>:<scope>:<subject>, двоеточия IPv6 заменяются
func (r *RateLimiter) key(scope Scope, subject string) string {
	kind, value, ok := strings.Cut(subject, ":")
	if !ok {
		return fmt.Sprintf("%s:%s:%s", r.prefix, scope, strings.ReplaceAll(subject, ":", "_"))
	}
	return fmt.Sprintf("%s:%s:%s:%s", r.prefix, scope, kind, strings.ReplaceAll(value, ":", "_"))
}

// Subject определяет, чей счётчик увеличивать: владельца корзины или адрес клиента
func Subject(r *http.Request, userID string) string {
	if userID != "" {
		return "user:" + userID
	}
	return "ip:" + ClientIP(r)
}

// ClientIP берёт адрес из X-Real-IP, первого X-Forwarded-For или RemoteAddr
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
