package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"bookstore-cart/internal/logger"
	"bookstore-cart/internal/models"

	"github.com/go-chi/chi/v5"
)

const maxCouponCodeLength = 64

// CouponHandler обрабатывает администрирование купонов.
type CouponHandler struct {
	coupons CouponAdmin
	log     *logger.Logger
}

// NewCouponHandler создаёт новый обработчик купонов.
func NewCouponHandler(coupons CouponAdmin, log *logger.Logger) *CouponHandler {
	return &CouponHandler{
		coupons: coupons,
		log:     log,
	}
}

// CreateCoupon создаёт купон.
func (h *CouponHandler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req models.CouponPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validateCouponCode(req.Code); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	coupon, err := h.coupons.CreateCoupon(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create coupon")
		return
	}

	writeJSONResponse(w, http.StatusCreated, coupon)
}

// ListCoupons возвращает список купонов.
func (h *CouponHandler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	coupons, err := h.coupons.ListCoupons(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list coupons")
		return
	}

	writeJSONResponse(w, http.StatusOK, coupons)
}

// GetCoupon возвращает купон по коду.
func (h *CouponHandler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	code, err := couponCodeParam(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	coupon, err := h.coupons.GetCoupon(r.Context(), code)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get coupon")
		return
	}

	writeJSONResponse(w, http.StatusOK, coupon)
}

// UpdateCoupon обновляет купон. Код в пути главнее кода в теле.
func (h *CouponHandler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	code, err := couponCodeParam(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var req models.CouponPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Code = code

	coupon, err := h.coupons.UpdateCoupon(r.Context(), code, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update coupon")
		return
	}

	writeJSONResponse(w, http.StatusOK, coupon)
}

// DeleteCoupon деактивирует купон.
func (h *CouponHandler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	code, err := couponCodeParam(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.coupons.DeleteCoupon(r.Context(), code); err != nil {
		writeServiceError(w, h.log, err, "Failed to delete coupon")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Coupon deactivated"})
}

// GetStats возвращает статистику погашений купона.
func (h *CouponHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	code, err := couponCodeParam(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := h.coupons.GetStats(r.Context(), code)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get coupon stats")
		return
	}

	writeJSONResponse(w, http.StatusOK, stats)
}

// ListRedemptions возвращает журнал погашений купона.
func (h *CouponHandler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	code, err := couponCodeParam(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	limit, offset := pagination(r)
	list, err := h.coupons.ListRedemptions(r.Context(), code, limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list redemptions")
		return
	}

	writeJSONResponse(w, http.StatusOK, list)
}

func validateCouponCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("coupon code is required")
	}
	if len(code) > maxCouponCodeLength {
		return fmt.Errorf("coupon code is too long")
	}
	return nil
}

func couponCodeParam(r *http.Request) (string, error) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if err := validateCouponCode(code); err != nil {
		return "", err
	}
	return strings.ToUpper(code), nil
}
