package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"bookstore-cart/internal/apperror"
	"bookstore-cart/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type stubCartService struct {
	view *models.CartView
	err  error

	userID    uuid.UUID
	productID uuid.UUID
	quantity  int
	code      string
	calls     []string
}

func (s *stubCartService) record(name string, userID uuid.UUID) (*models.CartView, error) {
	s.calls = append(s.calls, name)
	s.userID = userID
	return s.view, s.err
}

func (s *stubCartService) GetCart(ctx context.Context, userID uuid.UUID) (*models.CartView, error) {
	return s.record("get", userID)
}
func (s *stubCartService) AddItem(ctx context.Context, userID uuid.UUID, req *models.AddCartItemRequest) (*models.CartView, error) {
	s.productID = req.ProductID
	s.quantity = req.Quantity
	return s.record("add", userID)
}
func (s *stubCartService) SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartView, error) {
	s.productID = productID
	s.quantity = quantity
	return s.record("set", userID)
}
func (s *stubCartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*models.CartView, error) {
	s.productID = productID
	return s.record("remove", userID)
}
func (s *stubCartService) ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (*models.CartView, error) {
	s.code = code
	return s.record("apply", userID)
}
func (s *stubCartService) RemoveCoupon(ctx context.Context, userID uuid.UUID) (*models.CartView, error) {
	return s.record("remove_coupon", userID)
}
func (s *stubCartService) Clear(ctx context.Context, userID uuid.UUID) (*models.CartView, error) {
	return s.record("clear", userID)
}

func sampleView(userID uuid.UUID) *models.CartView {
	return &models.CartView{
		Cart: &models.Cart{
			UserID:        userID,
			Subtotal:      decimal.NewFromInt(250),
			DiscountTotal: decimal.NewFromInt(25),
			Total:         decimal.NewFromInt(225),
		},
		Status: models.CartStateActive,
	}
}

func TestCartHandler_RequiresUser(t *testing.T) {
	h := NewCartHandler(&stubCartService{}, newTestLogger())
	rr := httptest.NewRecorder()
	h.GetCart(rr, httptest.NewRequest(http.MethodGet, "/api/cart", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestCartHandler_GetCart(t *testing.T) {
	userID := uuid.New()
	svc := &stubCartService{view: sampleView(userID)}
	h := NewCartHandler(svc, newTestLogger())

	rr := httptest.NewRecorder()
	h.GetCart(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/cart", nil), userID, models.RoleCustomer))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.userID != userID {
		t.Fatalf("service called with wrong user")
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["state"] != string(models.CartStateActive) || body["total"] != "225" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestCartHandler_AddItem(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()
	svc := &stubCartService{view: sampleView(userID)}
	h := NewCartHandler(svc, newTestLogger())

	body := bytes.NewBufferString(`{"product_id":"` + productID.String() + `","quantity":2}`)
	rr := httptest.NewRecorder()
	h.AddItem(rr, withUser(httptest.NewRequest(http.MethodPost, "/api/cart/items", body), userID, models.RoleCustomer))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.productID != productID || svc.quantity != 2 {
		t.Fatalf("unexpected args: %s x%d", svc.productID, svc.quantity)
	}
}

func TestCartHandler_AddItem_BadBody(t *testing.T) {
	h := NewCartHandler(&stubCartService{}, newTestLogger())
	for _, raw := range []string{"not json", `{"quantity":1}`} {
		rr := httptest.NewRecorder()
		req := withUser(httptest.NewRequest(http.MethodPost, "/api/cart/items", bytes.NewBufferString(raw)), uuid.New(), models.RoleCustomer)
		h.AddItem(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%q: expected 400, got %d", raw, rr.Code)
		}
	}
}

func TestCartHandler_AddItem_ServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperror.WithReason(apperror.KindValidation, apperror.ReasonOutOfStock, "out of stock", nil), http.StatusBadRequest},
		{apperror.WithReason(apperror.KindValidation, apperror.ReasonInvalidQuantity, "quantity must be positive", nil), http.StatusBadRequest},
	}
	for _, tc := range cases {
		h := NewCartHandler(&stubCartService{err: tc.err}, newTestLogger())
		body := bytes.NewBufferString(`{"product_id":"` + uuid.NewString() + `","quantity":0}`)
		rr := httptest.NewRecorder()
		h.AddItem(rr, withUser(httptest.NewRequest(http.MethodPost, "/api/cart/items", body), uuid.New(), models.RoleCustomer))
		if rr.Code != tc.status {
			t.Fatalf("expected %d, got %d", tc.status, rr.Code)
		}
	}
}

func TestCartHandler_SetQuantity(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()
	svc := &stubCartService{view: sampleView(userID)}
	h := NewCartHandler(svc, newTestLogger())

	req := httptest.NewRequest(http.MethodPut, "/api/cart/items/"+productID.String(), bytes.NewBufferString(`{"quantity":0}`))
	req = withURLParams(withUser(req, userID, models.RoleCustomer), "productID", productID.String())
	rr := httptest.NewRecorder()
	h.SetQuantity(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.productID != productID || svc.quantity != 0 {
		t.Fatalf("unexpected args: %s x%d", svc.productID, svc.quantity)
	}
}

func TestCartHandler_SetQuantity_InvalidProductID(t *testing.T) {
	h := NewCartHandler(&stubCartService{}, newTestLogger())
	req := httptest.NewRequest(http.MethodPut, "/api/cart/items/nope", bytes.NewBufferString(`{"quantity":1}`))
	req = withURLParams(withUser(req, uuid.New(), models.RoleCustomer), "productID", "nope")
	rr := httptest.NewRecorder()
	h.SetQuantity(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCartHandler_RemoveItem_NotFound(t *testing.T) {
	err := apperror.WithReason(apperror.KindNotFound, apperror.ReasonItemNotFound, "item not in cart", nil)
	h := NewCartHandler(&stubCartService{err: err}, newTestLogger())

	productID := uuid.NewString()
	req := httptest.NewRequest(http.MethodDelete, "/api/cart/items/"+productID, nil)
	req = withURLParams(withUser(req, uuid.New(), models.RoleCustomer), "productID", productID)
	rr := httptest.NewRecorder()
	h.RemoveItem(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	var body ErrorResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	if body.Code != string(apperror.ReasonItemNotFound) {
		t.Fatalf("expected item_not_found code, got %q", body.Code)
	}
}

func TestCartHandler_ApplyCoupon(t *testing.T) {
	userID := uuid.New()
	svc := &stubCartService{view: sampleView(userID)}
	h := NewCartHandler(svc, newTestLogger())

	rr := httptest.NewRecorder()
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/cart/coupon", bytes.NewBufferString(`{"code":"save10"}`)), userID, models.RoleCustomer)
	h.ApplyCoupon(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.code != "save10" {
		t.Fatalf("expected raw code passed to service, got %q", svc.code)
	}
}

func TestCartHandler_ApplyCoupon_Rejected(t *testing.T) {
	svc := &stubCartService{err: apperror.CouponRejected(apperror.ReasonUserLimitReached, "coupon already used")}
	h := NewCartHandler(svc, newTestLogger())

	rr := httptest.NewRecorder()
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/cart/coupon", bytes.NewBufferString(`{"code":"ONCE"}`)), uuid.New(), models.RoleCustomer)
	h.ApplyCoupon(rr, req)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	var body ErrorResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	if body.Code != string(apperror.ReasonUserLimitReached) {
		t.Fatalf("expected user_limit_reached, got %q", body.Code)
	}
}

func TestCartHandler_ApplyCoupon_EmptyCode(t *testing.T) {
	svc := &stubCartService{}
	h := NewCartHandler(svc, newTestLogger())

	rr := httptest.NewRecorder()
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/cart/coupon", bytes.NewBufferString(`{"code":"  "}`)), uuid.New(), models.RoleCustomer)
	h.ApplyCoupon(rr, req)
	if rr.Code != http.StatusBadRequest || len(svc.calls) != 0 {
		t.Fatalf("expected 400 without service call, got %d calls=%v", rr.Code, svc.calls)
	}
}

func TestCartHandler_RemoveCouponAndClear(t *testing.T) {
	userID := uuid.New()
	svc := &stubCartService{view: &models.CartView{Cart: &models.Cart{UserID: userID}, Status: models.CartStateEmpty}}
	h := NewCartHandler(svc, newTestLogger())

	rr := httptest.NewRecorder()
	h.RemoveCoupon(rr, withUser(httptest.NewRequest(http.MethodDelete, "/api/cart/coupon", nil), userID, models.RoleCustomer))
	if rr.Code != http.StatusOK {
		t.Fatalf("remove coupon: expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Clear(rr, withUser(httptest.NewRequest(http.MethodDelete, "/api/cart", nil), userID, models.RoleCustomer))
	if rr.Code != http.StatusOK {
		t.Fatalf("clear: expected 200, got %d", rr.Code)
	}
	if len(svc.calls) != 2 || svc.calls[0] != "remove_coupon" || svc.calls[1] != "clear" {
		t.Fatalf("unexpected calls: %v", svc.calls)
	}
}
