package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"bookstore-cart/internal/logger"
	"bookstore-cart/internal/models"

	"github.com/google/uuid"
)

// CheckoutHandler принимает уведомление сервиса заказов об оплате.
type CheckoutHandler struct {
	finalizer Finalizer
	log       *logger.Logger
}

// NewCheckoutHandler создаёт обработчик оформления заказа.
func NewCheckoutHandler(finalizer Finalizer, log *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{finalizer: finalizer, log: log}
}

// Finalize фиксирует купон оплаченного заказа и очищает корзину.
// Вызывается сервисом заказов (роль service или admin), покупатель сюда не допускается.
// Тело содержит user_id владельца корзины; снимок корзины необязателен и только сверяется
// с сохранённой корзиной, скидка считается по ней.
func (h *CheckoutHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	orderID, err := uuidParam(r, "orderID")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var req models.FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == uuid.Nil {
		writeErrorResponse(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Cart != nil && req.Cart.UserID != uuid.Nil && req.Cart.UserID != req.UserID {
		writeErrorResponse(w, http.StatusBadRequest, "cart belongs to another user")
		return
	}
	req.OrderID = orderID

	result, err := h.finalizer.Finalize(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to finalize order")
		return
	}

	h.log.WithFields(map[string]interface{}{
		"order_id":         orderID,
		"user_id":          req.UserID,
		"caller":           caller.ID,
		"already_redeemed": result.AlreadyRedeemed,
	}).Info("Order finalized")

	writeJSONResponse(w, http.StatusOK, result)
}
