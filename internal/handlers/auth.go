package handlers

import (
	"net/http"

	"bookstore-cart/internal/apperror"
	"bookstore-cart/internal/auth"
	"bookstore-cart/internal/logger"
	"bookstore-cart/internal/models"
)

// AuthMiddleware проверяет bearer-токен и кладёт пользователя в контекст.
type AuthMiddleware struct {
	verifier TokenVerifier
	log      *logger.Logger
}

// NewAuthMiddleware создаёт middleware аутентификации.
func NewAuthMiddleware(verifier TokenVerifier, log *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, log: log}
}

// RequireUser пропускает только запросы с валидным токеном.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeServiceError(w, m.log, err, "Authentication failed")
			return
		}

		user, err := m.verifier.Verify(token)
		if err != nil {
			m.log.WithError(err).Debug("Rejected bearer token")
			writeServiceError(w, m.log, err, "Authentication failed")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
	})
}

// RequireRole пропускает только пользователей с одной из указанных ролей.
// Ставится после RequireUser.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok {
				writeServiceError(w, nil, apperror.Unauthorized("authentication required", nil), "Authentication failed")
				return
			}
			if !hasRole(user.Role, roles) {
				writeServiceError(w, nil, apperror.Forbidden("insufficient role", nil), "Access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasRole(role models.Role, allowed []models.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// currentUser достаёт пользователя, положенного RequireUser.
func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	return user, true
}
