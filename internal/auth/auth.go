package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"bookstore-cart/internal/apperror"
	"bookstore-cart/internal/config"
	"bookstore-cart/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims описывает содержимое access-токена. Subject хранит идентификатор пользователя.
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Verifier проверяет HS256 bearer-токены.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier создаёт проверяющего по секрету из конфигурации.
func NewVerifier(cfg *config.AuthConfig) *Verifier {
	return &Verifier{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
	}
}

// Issue выпускает токен для пользователя.
func (v *Verifier) Issue(user *models.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify проверяет подпись и срок токена и возвращает пользователя.
func (v *Verifier) Verify(tokenString string) (*models.User, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, apperror.Unauthorized("invalid token", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperror.Unauthorized("invalid token", nil)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperror.Unauthorized("invalid token subject", err)
	}

	role := claims.Role
	if role == "" {
		role = models.RoleCustomer
	}
	return &models.User{ID: userID, Role: role}, nil
}

// BearerToken извлекает токен из заголовка Authorization.
func BearerToken(header string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperror.Unauthorized("authorization header required", nil)
	}
	return strings.TrimSpace(parts[1]), nil
}

type ctxKey struct{}

// WithUser кладёт пользователя в контекст запроса.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// UserFromContext возвращает пользователя из контекста.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(ctxKey{}).(*models.User)
	return user, ok && user != nil
}
