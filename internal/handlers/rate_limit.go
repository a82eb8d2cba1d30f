package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"bookstore-cart/internal/auth"
	"bookstore-cart/internal/config"
	"bookstore-cart/internal/logger"
	"bookstore-cart/internal/services"
)

// QuotaLimiter лимитер запросов по scope
type QuotaLimiter interface {
	Enabled() bool
	Take(ctx context.Context, scope services.Scope, subject string) (services.Quota, error)
	Peek(ctx context.Context, scope services.Scope, subject string) (services.Quota, error)
}

// statusScopes порядок scope в ответе статуса
var statusScopes = []services.Scope{services.ScopeCart, services.ScopeCoupon, services.ScopeAdmin}

// RateLimitHandler показывает клиенту остаток его окон
type RateLimitHandler struct {
	limiter QuotaLimiter
	log     *logger.Logger
	cfg     *config.RateLimitConfig
}

func NewRateLimitHandler(limiter QuotaLimiter, log *logger.Logger, cfg *config.RateLimitConfig) *RateLimitHandler {
	return &RateLimitHandler{limiter: limiter, log: log, cfg: cfg}
}

// RateLimitStatus ответ GET /api/rate-limit/status
type RateLimitStatus struct {
	Enabled       bool             `json:"enabled"`
	Subject       string           `json:"subject,omitempty"`
	WindowSeconds int              `json:"window_seconds,omitempty"`
	Scopes        []services.Quota `json:"scopes,omitempty"`
}

// Status читает окна всех scope без учёта запроса
func (h *RateLimitHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if h.limiter == nil || !h.limiter.Enabled() {
		writeJSONResponse(w, http.StatusOK, RateLimitStatus{Enabled: false})
		return
	}

	resp := RateLimitStatus{Enabled: true, Subject: requestSubject(r)}
	if h.cfg != nil {
		resp.WindowSeconds = h.cfg.WindowSeconds
	}
	for _, scope := range statusScopes {
		q, err := h.limiter.Peek(r.Context(), scope, resp.Subject)
		if err != nil {
			h.log.WithError(err).WithField("scope", scope).Error("Failed to read rate limit window")
			writeErrorResponse(w, http.StatusInternalServerError, "Failed to fetch rate limit usage")
			return
		}
		resp.Scopes = append(resp.Scopes, q)
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// RateLimit ограничивает запросы владельца корзины (или IP) в пределах scope.
// Ставится после RequireUser, чтобы счётчик вёлся по пользователю.
func RateLimit(limiter QuotaLimiter, scope services.Scope, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || !limiter.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			q, err := limiter.Take(r.Context(), scope, requestSubject(r))
			if err != nil {
				log.WithError(err).WithField("scope", scope).Error("Rate limiter failed")
				writeErrorResponse(w, http.StatusInternalServerError, "Rate limiter error")
				return
			}

			w.Header().Set("X-RateLimit-Scope", string(scope))
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(q.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(q.Remaining, 10))
			if q.ResetAt != nil {
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(q.ResetAt.Unix(), 10))
			}

			if q.Exceeded() {
				if q.ResetAt != nil {
					retry := int64(time.Until(*q.ResetAt).Round(time.Second) / time.Second)
					if retry < 1 {
						retry = 1
					}
					w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
				}
				log.WithField("scope", scope).WithField("subject", q.Subject).Warn("Rate limit exceeded")
				writeCodedErrorResponse(w, http.StatusTooManyRequests, "rate_limited", "Too many "+string(scope)+" requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func requestSubject(r *http.Request) string {
	if user, ok := auth.UserFromContext(r.Context()); ok {
		return services.Subject(r, user.ID.String())
	}
	return services.Subject(r, "")
}
