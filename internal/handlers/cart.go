package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"bookstore-cart/internal/logger"
	"bookstore-cart/internal/models"

	"github.com/google/uuid"
)

// CartHandler обслуживает корзину текущего пользователя.
type CartHandler struct {
	carts CartService
	log   *logger.Logger
}

// NewCartHandler создаёт обработчик корзины.
func NewCartHandler(carts CartService, log *logger.Logger) *CartHandler {
	return &CartHandler{carts: carts, log: log}
}

// GetCart возвращает корзину с пересчитанными суммами.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	view, err := h.carts.GetCart(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get cart")
		return
	}

	writeJSONResponse(w, http.StatusOK, view)
}

// AddItem добавляет позицию или увеличивает количество.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.AddCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ProductID == uuid.Nil {
		writeErrorResponse(w, http.StatusBadRequest, "product_id is required")
		return
	}

	view, err := h.carts.AddItem(r.Context(), user.ID, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to add item")
		return
	}

	writeJSONResponse(w, http.StatusOK, view)
}

// SetQuantity задаёт количество позиции; 0 удаляет её.
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	productID, err := uuidParam(r, "productID")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var req models.SetQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := h.carts.SetQuantity(r.Context(), user.ID, productID, req.Quantity)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update item")
		return
	}

	writeJSONResponse(w, http.StatusOK, view)
}

// RemoveItem удаляет позицию из корзины.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	productID, err := uuidParam(r, "productID")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.carts.RemoveItem(r.Context(), user.ID, productID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to remove item")
		return
	}

	writeJSONResponse(w, http.StatusOK, view)
}

// ApplyCoupon применяет купон к корзине.
func (h *CartHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.ApplyCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeErrorResponse(w, http.StatusBadRequest, "coupon code is required")
		return
	}

	view, err := h.carts.ApplyCoupon(r.Context(), user.ID, req.Code)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to apply coupon")
		return
	}

	writeJSONResponse(w, http.StatusOK, view)
}

// RemoveCoupon снимает купон с корзины.
func (h *CartHandler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	view, err := h.carts.RemoveCoupon(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to remove coupon")
		return
	}

	writeJSONResponse(w, http.StatusOK, view)
}

// Clear очищает корзину.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	view, err := h.carts.Clear(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to clear cart")
		return
	}

	writeJSONResponse(w, http.StatusOK, view)
}
