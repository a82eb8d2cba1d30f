package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"bookstore-cart/internal/config"
	"bookstore-cart/internal/redis"
)

// memoryWindows: счётчики окна с TTL, как IncrWindow/PeekWindow в Redis
type memoryWindows struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Time
	err     error
}

func newMemoryWindows() *memoryWindows {
	return &memoryWindows{counts: make(map[string]int64), expires: make(map[string]time.Time)}
}

func (m *memoryWindows) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, 0, m.err
	}
	m.expireLocked(key)
	if _, ok := m.expires[key]; !ok {
		m.expires[key] = time.Now().Add(window)
	}
	m.counts[key]++
	return m.counts[key], time.Until(m.expires[key]), nil
}

func (m *memoryWindows) PeekWindow(ctx context.Context, key string) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, 0, m.err
	}
	m.expireLocked(key)
	n, ok := m.counts[key]
	if !ok {
		return 0, 0, redis.ErrCacheMiss
	}
	return n, time.Until(m.expires[key]), nil
}

func (m *memoryWindows) expireLocked(key string) {
	if exp, ok := m.expires[key]; ok && time.Now().After(exp) {
		delete(m.expires, key)
		delete(m.counts, key)
	}
}

func newTestLimiter(counter windowCounter, cart, coupon int64) *RateLimiter {
	return &RateLimiter{
		counter: counter,
		log:     newQuietLogger(),
		window:  time.Minute,
		limits:  map[Scope]int64{ScopeCart: cart, ScopeCoupon: coupon, ScopeAdmin: cart},
		prefix:  "rl",
	}
}

func TestRateLimiter_CouponAttemptsLimitedSeparately(t *testing.T) {
	windows := newMemoryWindows()
	limiter := newTestLimiter(windows, 5, 2)
	ctx := context.Background()
	subject := "user:7f1c"

	for i := 0; i < 2; i++ {
		q, err := limiter.Take(ctx, ScopeCoupon, subject)
		if err != nil || q.Exceeded() {
			t.Fatalf("attempt %d should pass, got %+v err=%v", i+1, q, err)
		}
	}
	q, err := limiter.Take(ctx, ScopeCoupon, subject)
	if err != nil || !q.Exceeded() || q.Remaining != 0 {
		t.Fatalf("third coupon attempt must be rejected, got %+v err=%v", q, err)
	}

	// корзина считается отдельно
	q, err = limiter.Take(ctx, ScopeCart, subject)
	if err != nil || q.Exceeded() || q.Used != 1 || q.Remaining != 4 {
		t.Fatalf("cart scope must have its own window, got %+v err=%v", q, err)
	}

	if _, ok := windows.counts["rl:coupon:user:7f1c"]; !ok {
		t.Fatalf("expected coupon key, got %v", windows.counts)
	}
	if _, ok := windows.counts["rl:cart:user:7f1c"]; !ok {
		t.Fatalf("expected cart key, got %v", windows.counts)
	}
}

func TestRateLimiter_PeekDoesNotCount(t *testing.T) {
	limiter := newTestLimiter(newMemoryWindows(), 3, 3)
	ctx := context.Background()

	q, err := limiter.Peek(ctx, ScopeCart, "ip:10.0.0.1")
	if err != nil || q.Used != 0 || q.Remaining != 3 || q.ResetAt != nil {
		t.Fatalf("expected untouched window, got %+v err=%v", q, err)
	}

	_, _ = limiter.Take(ctx, ScopeCart, "ip:10.0.0.1")
	_, _ = limiter.Take(ctx, ScopeCart, "ip:10.0.0.1")
	for i := 0; i < 2; i++ {
		q, err = limiter.Peek(ctx, ScopeCart, "ip:10.0.0.1")
		if err != nil || q.Used != 2 || q.Remaining != 1 || q.ResetAt == nil {
			t.Fatalf("unexpected peek: %+v err=%v", q, err)
		}
	}
}

func TestRateLimiter_IPv6SubjectKey(t *testing.T) {
	windows := newMemoryWindows()
	limiter := newTestLimiter(windows, 3, 3)

	if _, err := limiter.Take(context.Background(), ScopeAdmin, "ip:2001:db8::1"); err != nil {
		t.Fatalf("take failed: %v", err)
	}
	if _, ok := windows.counts["rl:admin:ip:2001_db8__1"]; !ok {
		t.Fatalf("unexpected keys: %v", windows.counts)
	}
}

func TestRateLimiter_CounterError(t *testing.T) {
	windows := newMemoryWindows()
	windows.err = errors.New("redis down")
	limiter := newTestLimiter(windows, 3, 3)

	if _, err := limiter.Take(context.Background(), ScopeCart, "ip:1.1.1.1"); !errors.Is(err, windows.err) {
		t.Fatalf("expected counter error, got %v", err)
	}
	if _, err := limiter.Peek(context.Background(), ScopeCart, "ip:1.1.1.1"); !errors.Is(err, windows.err) {
		t.Fatalf("expected counter error, got %v", err)
	}
}

func TestNewRateLimiter_Disabled(t *testing.T) {
	if NewRateLimiter(nil, nil, nil).Enabled() {
		t.Fatalf("expected limiter disabled without redis")
	}
	if NewRateLimiter(&redis.Client{}, nil, &config.RateLimitConfig{Enabled: false, Requests: 10, WindowSeconds: 60}).Enabled() {
		t.Fatalf("expected limiter disabled by config")
	}

	var nilLimiter *RateLimiter
	q, err := nilLimiter.Take(context.Background(), ScopeCart, "ip:1.1.1.1")
	if err != nil || q.Exceeded() {
		t.Fatalf("disabled limiter must let requests through, got %+v err=%v", q, err)
	}
}

func TestNewRateLimiter_CouponAttemptsCappedByRequests(t *testing.T) {
	cfg := &config.RateLimitConfig{Enabled: true, Requests: 20, CouponAttempts: 50, WindowSeconds: 60}
	limiter := NewRateLimiter(&redis.Client{}, newQuietLogger(), cfg)
	if !limiter.Enabled() {
		t.Fatalf("expected enabled limiter")
	}
	if limiter.limitFor(ScopeCoupon) != 20 || limiter.limitFor(ScopeCart) != 20 {
		t.Fatalf("unexpected limits: %v", limiter.limits)
	}
	if limiter.prefix != redis.KeyPrefixRateLimit {
		t.Fatalf("expected default prefix, got %q", limiter.prefix)
	}

	cfg.CouponAttempts = 5
	if got := NewRateLimiter(&redis.Client{}, newQuietLogger(), cfg).limitFor(ScopeCoupon); got != 5 {
		t.Fatalf("expected coupon limit 5, got %d", got)
	}
}

func TestSubjectAndClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	r.RemoteAddr = "192.168.0.1:1234"
	if got := Subject(r, ""); got != "ip:192.168.0.1" {
		t.Fatalf("expected ip subject, got %s", got)
	}
	if got := Subject(r, "abc"); got != "user:abc" {
		t.Fatalf("expected user subject, got %s", got)
	}

	r.Header.Set("X-Forwarded-For", " 10.0.0.2 , 10.0.0.3")
	if got := ClientIP(r); got != "10.0.0.2" {
		t.Fatalf("expected first forwarded ip, got %s", got)
	}
	r.Header.Set("X-Real-IP", "10.0.0.1")
	if got := ClientIP(r); got != "10.0.0.1" {
		t.Fatalf("expected real ip, got %s", got)
	}
}
