package auth

import (
	"context"
	"testing"
	"time"

	"bookstore-cart/internal/apperror"
	"bookstore-cart/internal/config"
	"bookstore-cart/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func newTestVerifier() *Verifier {
	return NewVerifier(&config.AuthConfig{JWTSecret: "secret", Issuer: "bookstore"})
}

func TestVerifier_IssueAndVerify(t *testing.T) {
	v := newTestVerifier()
	user := &models.User{ID: uuid.New(), Role: models.RoleAdmin}

	token, err := v.Issue(user, time.Minute)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	got, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if got.ID != user.ID || got.Role != models.RoleAdmin {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestVerifier_Rejects(t *testing.T) {
	v := newTestVerifier()
	user := &models.User{ID: uuid.New(), Role: models.RoleCustomer}

	expired, _ := v.Issue(user, -time.Minute)
	foreign, _ := NewVerifier(&config.AuthConfig{JWTSecret: "other", Issuer: "bookstore"}).Issue(user, time.Minute)
	wrongIssuer, _ := NewVerifier(&config.AuthConfig{JWTSecret: "secret", Issuer: "elsewhere"}).Issue(user, time.Minute)

	badSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "not-a-uuid", Issuer: "bookstore"},
	}).SignedString([]byte("secret"))

	cases := map[string]string{
		"expired":      expired,
		"foreign":      foreign,
		"wrong issuer": wrongIssuer,
		"bad subject":  badSubject,
		"garbage":      "abc.def.ghi",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Verify(token); !apperror.Is(err, apperror.KindUnauthorized) {
				t.Fatalf("expected unauthorized, got %v", err)
			}
		})
	}
}

func TestVerifier_DefaultRole(t *testing.T) {
	v := newTestVerifier()
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.New().String(), Issuer: "bookstore"},
	}).SignedString([]byte("secret"))

	user, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if user.Role != models.RoleCustomer {
		t.Fatalf("expected customer role, got %s", user.Role)
	}
}

func TestBearerToken(t *testing.T) {
	if tok, err := BearerToken("Bearer abc"); err != nil || tok != "abc" {
		t.Fatalf("unexpected: %q %v", tok, err)
	}
	if tok, err := BearerToken("bearer  xyz "); err != nil || tok != "xyz" {
		t.Fatalf("unexpected: %q %v", tok, err)
	}
	for _, h := range []string{"", "Bearer", "Basic abc", "Bearer    "} {
		if _, err := BearerToken(h); !apperror.Is(err, apperror.KindUnauthorized) {
			t.Fatalf("expected unauthorized for %q, got %v", h, err)
		}
	}
}

func TestUserContext(t *testing.T) {
	if _, ok := UserFromContext(context.Background()); ok {
		t.Fatalf("expected no user in empty context")
	}
	user := &models.User{ID: uuid.New()}
	got, ok := UserFromContext(WithUser(context.Background(), user))
	if !ok || got.ID != user.ID {
		t.Fatalf("expected user from context")
	}
}
