package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"aurelia/backend/internal/domain"
	"aurelia/backend/internal/service"
	"aurelia/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, nil, 30*time.Second)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"email":    "admin@aurelia.local",
		"password": "admin123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["access_token"] == "" || body["access_token"] == nil {
		t.Fatalf("expected access_token in response, got %v", body)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"email":    "admin@aurelia.local",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleRegisterThenLogin(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"email":     "shopper@example.com",
		"password":  "longenough",
		"full_name": "Test Shopper",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatalf("expected token on registration")
	}
	if resp.Role != domain.RoleCustomer {
		t.Fatalf("expected customer role, got %s", resp.Role)
	}

	loginPayload, _ := json.Marshal(map[string]string{
		"email":    "shopper@example.com",
		"password": "longenough",
	})
	loginReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(loginPayload))
	loginReq.Header.Set("Content-Type", "application/json")
	loginRec := httptest.NewRecorder()
	handler.ServeHTTP(loginRec, loginReq)

	if loginRec.Code != http.StatusOK {
		t.Fatalf("login after register failed: %d %s", loginRec.Code, loginRec.Body.String())
	}
}

func TestHandleProducts_PublicListing(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Products) == 0 {
		t.Fatalf("expected seeded products in response")
	}
	for _, p := range body.Products {
		if !p.Visible {
			t.Fatalf("public listing leaked hidden product %s", p.ID)
		}
	}
}

func TestHandleProductBySlug(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/heavyweight-tee", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Product domain.Product `json:"product"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Product.Slug != "heavyweight-tee" {
		t.Fatalf("expected heavyweight-tee, got %s", body.Product.Slug)
	}
}

func TestHandleProductBySlug_NotFound(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/no-such-product", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleCartQuote(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.QuoteRequest{
		Items: []domain.CartItem{{ProductID: "prod-tee-01", Qty: 2}},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/quote", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.QuoteResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode quote response: %v", err)
	}

	// Two tees at 38000 each: subtotal 76000, under the 150000 free shipping
	// threshold, 18 percent tax on the discounted subtotal.
	if resp.Quote.SubtotalCents != 76000 {
		t.Fatalf("subtotal = %d, want 76000", resp.Quote.SubtotalCents)
	}
	if resp.Quote.ShippingCents != 9900 {
		t.Fatalf("shipping = %d, want 9900", resp.Quote.ShippingCents)
	}
	if resp.Quote.TaxCents != 13680 {
		t.Fatalf("tax = %d, want 13680", resp.Quote.TaxCents)
	}
	if resp.Quote.TotalCents != 99580 {
		t.Fatalf("total = %d, want 99580", resp.Quote.TotalCents)
	}
}

func TestHandleCartQuote_WithCoupon(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.QuoteRequest{
		Items:      []domain.CartItem{{ProductID: "prod-tee-01", Qty: 2}},
		CouponCode: "save10",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/quote", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.QuoteResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode quote response: %v", err)
	}
	if resp.Coupon == nil || resp.Coupon.Code != "SAVE10" {
		t.Fatalf("expected SAVE10 applied, got %+v", resp.Coupon)
	}
	if resp.Quote.DiscountCents != 7600 {
		t.Fatalf("discount = %d, want 7600", resp.Quote.DiscountCents)
	}
	if resp.Quote.TotalCents != 90612 {
		t.Fatalf("total = %d, want 90612", resp.Quote.TotalCents)
	}
}

func TestHandleCartQuote_RejectedCouponStillQuotes(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.QuoteRequest{
		Items:      []domain.CartItem{{ProductID: "prod-tee-01", Qty: 1}},
		CouponCode: "NOPE",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/quote", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.QuoteResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode quote response: %v", err)
	}
	if resp.Coupon != nil {
		t.Fatalf("expected no coupon applied, got %+v", resp.Coupon)
	}
	if resp.CouponReason != "not_found" {
		t.Fatalf("coupon reason = %q, want not_found", resp.CouponReason)
	}
	if resp.Quote.DiscountCents != 0 {
		t.Fatalf("discount = %d, want 0", resp.Quote.DiscountCents)
	}
}

func TestHandleValidateCoupon_MinimumNotMet(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	csrf := fetchCSRFToken(t, api)

	// WELCOME requires a minimum order of 50000 cents; one candle is 24000.
	payload, _ := json.Marshal(domain.ValidateCouponRequest{
		Code:  "WELCOME",
		Items: []domain.CartItem{{ProductID: "prod-candle-01", Qty: 1}},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/coupons/validate", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.ValidateCouponResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Valid {
		t.Fatalf("expected coupon to be rejected")
	}
	if resp.Reason != "minimum_not_met" {
		t.Fatalf("reason = %q, want minimum_not_met", resp.Reason)
	}
}

func TestHandleCheckout_Guest(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.CheckoutRequest{
		Items:      []domain.CartItem{{ProductID: "prod-tee-01", Qty: 4}},
		GuestEmail: "guest@example.com",
		Address: domain.Address{
			FullName:     "Guest Buyer",
			AddressLine1: "1 Main St",
			City:         "Springfield",
			State:        "IL",
			PostalCode:   "62701",
			Country:      "US",
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.CheckoutResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode checkout response: %v", err)
	}
	if resp.Order.OrderNumber == "" {
		t.Fatalf("expected order number to be assigned")
	}
	if resp.Order.Status != domain.OrderStatusPending {
		t.Fatalf("status = %q, want pending", resp.Order.Status)
	}
	// Four tees: subtotal 152000, over the free shipping threshold.
	if resp.Order.ShippingCents != 0 {
		t.Fatalf("shipping = %d, want 0", resp.Order.ShippingCents)
	}
	if resp.Order.TotalCents != 179360 {
		t.Fatalf("total = %d, want 179360", resp.Order.TotalCents)
	}

	// The guest can look the order up by number and email.
	lookupReq := httptest.NewRequest(http.MethodGet,
		"/api/v1/orders/lookup?number="+resp.Order.OrderNumber+"&email=guest@example.com", nil)
	lookupRec := httptest.NewRecorder()
	handler.ServeHTTP(lookupRec, lookupReq)

	if lookupRec.Code != http.StatusOK {
		t.Fatalf("lookup expected 200, got %d (body: %s)", lookupRec.Code, lookupRec.Body.String())
	}
}

func TestHandleCheckout_InsufficientStock(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	csrf := fetchCSRFToken(t, api)

	// prod-tote-01 is seeded with stock 3.
	payload, _ := json.Marshal(domain.CheckoutRequest{
		Items:      []domain.CartItem{{ProductID: "prod-tote-01", Qty: 5}},
		GuestEmail: "guest@example.com",
		Address: domain.Address{
			FullName:     "Guest Buyer",
			AddressLine1: "1 Main St",
			City:         "Springfield",
			State:        "IL",
			PostalCode:   "62701",
			Country:      "US",
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleAdminProducts_RequiresAdminRole(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/products", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	// A customer token is authenticated but not authorized.
	customerToken := registerCustomer(t, api, "plain@example.com")
	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/products", nil)
	req.Header.Set("Authorization", "Bearer "+customerToken)
	rec = httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer token, got %d", rec.Code)
	}
}

func TestHandleAdminOrderStatus(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	csrf := fetchCSRFToken(t, api)
	token := loginAsAdmin(t, api)

	checkoutPayload, _ := json.Marshal(domain.CheckoutRequest{
		Items:      []domain.CartItem{{ProductID: "prod-candle-01", Qty: 1}},
		GuestEmail: "guest@example.com",
		Address: domain.Address{
			FullName:     "Guest Buyer",
			AddressLine1: "1 Main St",
			City:         "Springfield",
			State:        "IL",
			PostalCode:   "62701",
			Country:      "US",
		},
	})
	checkoutReq := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(checkoutPayload))
	checkoutReq.Header.Set("Content-Type", "application/json")
	checkoutReq.Header.Set("X-CSRF-Token", csrf)
	checkoutRec := httptest.NewRecorder()
	handler.ServeHTTP(checkoutRec, checkoutReq)

	if checkoutRec.Code != http.StatusCreated {
		t.Fatalf("checkout failed: %d %s", checkoutRec.Code, checkoutRec.Body.String())
	}
	var checkoutResp domain.CheckoutResponse
	if err := json.NewDecoder(checkoutRec.Body).Decode(&checkoutResp); err != nil {
		t.Fatalf("decode checkout response: %v", err)
	}

	statusPayload, _ := json.Marshal(domain.OrderStatusUpdateRequest{Status: domain.OrderStatusPaid})
	req := httptest.NewRequest(http.MethodPost,
		"/api/v1/admin/orders/"+checkoutResp.Order.ID+"/status", bytes.NewReader(statusPayload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	// Moving a paid order straight to delivered must fail.
	invalidPayload, _ := json.Marshal(domain.OrderStatusUpdateRequest{Status: domain.OrderStatusDelivered})
	req = httptest.NewRequest(http.MethodPost,
		"/api/v1/admin/orders/"+checkoutResp.Order.ID+"/status", bytes.NewReader(invalidPayload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec = httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid transition, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleAdminSettingsRoundTrip(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	csrf := fetchCSRFToken(t, api)
	token := loginAsAdmin(t, api)

	settings := domain.DefaultSiteSettings()
	settings.Shipping.BasePriceCents = 12000

	payload, _ := json.Marshal(settings)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/settings", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	// The public settings endpoint reflects the update.
	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
	getRec := httptest.NewRecorder()
	handler.ServeHTTP(getRec, getReq)

	var body struct {
		Settings domain.SiteSettings `json:"settings"`
	}
	if err := json.NewDecoder(getRec.Body).Decode(&body); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if body.Settings.Shipping.BasePriceCents != 12000 {
		t.Fatalf("base shipping = %d, want 12000", body.Settings.Shipping.BasePriceCents)
	}
}

// registerCustomer creates a fresh customer account and returns its token.
func registerCustomer(t *testing.T, api *API, email string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"email":    email,
		"password": "longenough",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return resp.AccessToken
}
