package handlers

import (
	"context"
	"net/http"

	"bookstore-cart/internal/auth"
	"bookstore-cart/internal/config"
	"bookstore-cart/internal/logger"
	"bookstore-cart/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func newTestLogger() *logger.Logger {
	return logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
}

// withURLParams подставляет параметры маршрута chi без роутера.
func withURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func withUser(r *http.Request, id uuid.UUID, role models.Role) *http.Request {
	return r.WithContext(auth.WithUser(r.Context(), &models.User{ID: id, Role: role}))
}
