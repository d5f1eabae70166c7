package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/storefront-cart/internal/bus"
	"github.com/example/storefront-cart/internal/cart"
	"github.com/example/storefront-cart/internal/cartsync"
	"github.com/example/storefront-cart/internal/coupon"
	"github.com/example/storefront-cart/internal/discount"
	"github.com/example/storefront-cart/internal/session"
	"github.com/example/storefront-cart/internal/storage"
	"github.com/example/storefront-cart/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend scripts the server cart, coupon catalog and coupon apply
// endpoints behind one struct.
type fakeBackend struct {
	cart     []upstream.CartLineWire
	coupons  []coupon.Coupon
	envelope *upstream.ApplyEnvelope
	applyErr error
}

func (f *fakeBackend) FetchCart(ctx context.Context) ([]upstream.CartLineWire, error) {
	return f.cart, nil
}

func (f *fakeBackend) ChangeQuantity(ctx context.Context, productID, variantID string, dir upstream.Direction) ([]upstream.CartLineWire, error) {
	return f.cart, nil
}

func (f *fakeBackend) RemoveItem(ctx context.Context, productID, variantID string) ([]upstream.CartLineWire, error) {
	return f.cart, nil
}

func (f *fakeBackend) ListCoupons(ctx context.Context) ([]coupon.Coupon, error) {
	return f.coupons, nil
}

func (f *fakeBackend) SearchCoupons(ctx context.Context, query string) ([]coupon.Coupon, error) {
	return coupon.FilterSearch(f.coupons, query), nil
}

func (f *fakeBackend) ApplyCoupon(ctx context.Context, couponID string) (*upstream.ApplyEnvelope, error) {
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	return f.envelope, nil
}

func newTestServer(t *testing.T, backend *fakeBackend) (*httptest.Server, *storage.MemoryStore, *session.Verifier) {
	t.Helper()
	store := storage.NewMemoryStore()
	b := bus.New()
	syncSvc := cartsync.NewService(store, b, backend)
	discountSvc := discount.NewService(store, b, backend)
	searcher := coupon.NewSearcher(backend.SearchCoupons, time.Millisecond)
	verifier := session.NewVerifier("test-secret")

	handlers := NewHandlers(store, syncSvc, discountSvc, backend, searcher)
	srv := httptest.NewServer(NewRouter(handlers, verifier))
	t.Cleanup(srv.Close)
	return srv, store, verifier
}

func doJSON(t *testing.T, method, url string, payload any, token string) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeCart(t *testing.T, resp *http.Response) cartResponse {
	t.Helper()
	defer resp.Body.Close()
	var cr cartResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cr))
	return cr
}

func activeCoupon() coupon.Coupon {
	return coupon.Coupon{
		ID:             "c-save10",
		Code:           "SAVE10",
		Description:    "10% off apparel",
		DiscountType:   coupon.Percentage,
		DiscountAmount: 10,
		ApplyTo:        coupon.ApplyToCategory,
		Scope:          coupon.CategoryScope{CategoryID: "apparel"},
		ExpiryDate:     time.Now().Add(24 * time.Hour),
		IsActive:       true,
	}
}

// ============================================
// Cart Endpoint Tests
// ============================================

func TestGetCart_EmptyTotals(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeBackend{})

	resp := doJSON(t, http.MethodGet, srv.URL+"/cart", nil, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	cr := decodeCart(t, resp)
	assert.Empty(t, cr.Items)
	assert.Equal(t, 0, cr.Totals.Total)
	assert.Nil(t, cr.AppliedCoupon)
}

func TestAddItem_ReturnsCartWithTotals(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeBackend{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/cart/items", map[string]any{
		"product_id": "P1",
		"name":       "Shirt",
		"price":      1000,
		"quantity":   2,
	}, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	cr := decodeCart(t, resp)
	require.Len(t, cr.Items, 1)
	assert.Equal(t, "P1", cr.Items[0].ID)
	assert.Equal(t, 2000, cr.Totals.Subtotal)
	assert.Equal(t, 2000, cr.Totals.Total)
}

func TestAddItem_RejectsZeroQuantity(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeBackend{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/cart/items", map[string]any{
		"product_id": "P1",
		"quantity":   0,
	}, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChangeQuantity_Guest(t *testing.T) {
	srv, store, _ := newTestServer(t, &fakeBackend{})
	require.NoError(t, store.Save(context.Background(), []cart.LineItem{
		{ID: "P1", ProductID: "P1", Price: 500, Quantity: 1},
	}))

	resp := doJSON(t, http.MethodPut, srv.URL+"/cart/items/P1", map[string]int{"quantity": 3}, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	cr := decodeCart(t, resp)
	require.Len(t, cr.Items, 1)
	assert.Equal(t, 3, cr.Items[0].Quantity)
	assert.Equal(t, 1500, cr.Totals.Subtotal)
}

func TestRemoveItem_Guest(t *testing.T) {
	srv, store, _ := newTestServer(t, &fakeBackend{})
	require.NoError(t, store.Save(context.Background(), []cart.LineItem{{ID: "P1", ProductID: "P1", Price: 100, Quantity: 1}}))

	resp := doJSON(t, http.MethodDelete, srv.URL+"/cart/items/P1", nil, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	cr := decodeCart(t, resp)
	assert.Empty(t, cr.Items)
}

func TestSyncCart_AuthenticatedOverwrite(t *testing.T) {
	backend := &fakeBackend{
		cart: []upstream.CartLineWire{{
			Product:  upstream.ProductWire{ID: "P1", Name: "Shirt", Price: 1000, OfferPrice: 800, CategoryID: "apparel"},
			Quantity: 2,
		}},
	}
	srv, store, verifier := newTestServer(t, backend)
	require.NoError(t, store.Save(context.Background(), []cart.LineItem{{ID: "stale", Quantity: 9}}))
	token, err := verifier.Sign("user-123", "shopper@example.com", time.Hour)
	require.NoError(t, err)

	resp := doJSON(t, http.MethodPost, srv.URL+"/cart/sync", nil, token)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	cr := decodeCart(t, resp)
	require.Len(t, cr.Items, 1)
	assert.Equal(t, "P1", cr.Items[0].ID)
	assert.Equal(t, 800, cr.Items[0].Price)
	assert.Equal(t, 1600, cr.Totals.Subtotal)
}

func TestSyncCart_Guest_KeepsLocal(t *testing.T) {
	backend := &fakeBackend{
		cart: []upstream.CartLineWire{{Product: upstream.ProductWire{ID: "server"}, Quantity: 1}},
	}
	srv, store, _ := newTestServer(t, backend)
	require.NoError(t, store.Save(context.Background(), []cart.LineItem{{ID: "local", Price: 100, Quantity: 1}}))

	resp := doJSON(t, http.MethodPost, srv.URL+"/cart/sync", nil, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	cr := decodeCart(t, resp)
	require.Len(t, cr.Items, 1)
	assert.Equal(t, "local", cr.Items[0].ID)
}

// ============================================
// Coupon Endpoint Tests
// ============================================

func TestListCoupons_FiltersIneligible(t *testing.T) {
	expired := activeCoupon()
	expired.ID = "c-old"
	expired.Code = "OLD"
	expired.ExpiryDate = time.Now().Add(-time.Hour)
	backend := &fakeBackend{coupons: []coupon.Coupon{activeCoupon(), expired}}
	srv, store, _ := newTestServer(t, backend)
	require.NoError(t, store.Save(context.Background(), []cart.LineItem{
		{ID: "P1", ProductID: "P1", Price: 1000, Quantity: 1, CategoryID: "apparel"},
	}))

	resp := doJSON(t, http.MethodGet, srv.URL+"/coupons", nil, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	var body struct {
		Coupons []struct {
			Code string `json:"Code"`
		} `json:"coupons"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Coupons, 1)
	assert.Equal(t, "SAVE10", body.Coupons[0].Code)
}

func TestListCoupons_EmptyCart_NoneEligible(t *testing.T) {
	backend := &fakeBackend{coupons: []coupon.Coupon{activeCoupon()}}
	srv, _, _ := newTestServer(t, backend)

	resp := doJSON(t, http.MethodGet, srv.URL+"/coupons", nil, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	var body struct {
		Coupons []json.RawMessage `json:"coupons"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body.Coupons)
}

func TestApplyCoupon_Guest_LocalSource(t *testing.T) {
	backend := &fakeBackend{coupons: []coupon.Coupon{activeCoupon()}}
	srv, store, _ := newTestServer(t, backend)
	require.NoError(t, store.Save(context.Background(), []cart.LineItem{
		{ID: "P1", ProductID: "P1", Price: 1000, Quantity: 2, CategoryID: "apparel"},
	}))

	resp := doJSON(t, http.MethodPost, srv.URL+"/coupons/apply", map[string]string{"coupon_id": "c-save10"}, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	var body struct {
		Source  string                      `json:"source"`
		Applied coupon.AppliedCouponDetails `json:"applied"`
		Base    int                         `json:"base"`
		Cart    cartResponse                `json:"cart"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "local", body.Source)
	assert.Equal(t, 2000, body.Base)
	assert.Equal(t, 200, body.Applied.DiscountAmount)
	assert.Equal(t, 200, body.Cart.Totals.CouponDiscount)
	assert.Equal(t, 1800, body.Cart.Totals.Total)
}

func TestApplyCoupon_UnknownID(t *testing.T) {
	backend := &fakeBackend{coupons: []coupon.Coupon{activeCoupon()}}
	srv, _, _ := newTestServer(t, backend)

	resp := doJSON(t, http.MethodPost, srv.URL+"/coupons/apply", map[string]string{"coupon_id": "nope"}, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestApplyCoupon_ExpiredRejected(t *testing.T) {
	expired := activeCoupon()
	expired.ExpiryDate = time.Now().Add(-time.Hour)
	backend := &fakeBackend{coupons: []coupon.Coupon{expired}}
	srv, store, _ := newTestServer(t, backend)
	require.NoError(t, store.Save(context.Background(), []cart.LineItem{
		{ID: "P1", Price: 1000, Quantity: 1, CategoryID: "apparel"},
	}))

	resp := doJSON(t, http.MethodPost, srv.URL+"/coupons/apply", map[string]string{"coupon_id": "c-save10"}, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestApplyCoupon_UpstreamBusinessRejection(t *testing.T) {
	backend := &fakeBackend{
		coupons:  []coupon.Coupon{activeCoupon()},
		applyErr: &upstream.APIError{Status: 422, Code: "min_purchase", Message: "Minimum purchase required"},
	}
	srv, store, verifier := newTestServer(t, backend)
	require.NoError(t, store.Save(context.Background(), []cart.LineItem{
		{ID: "P1", Price: 1000, Quantity: 1, CategoryID: "apparel"},
	}))
	token, err := verifier.Sign("user-123", "", time.Hour)
	require.NoError(t, err)

	resp := doJSON(t, http.MethodPost, srv.URL+"/coupons/apply", map[string]string{"coupon_id": "c-save10"}, token)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestRemoveCoupon(t *testing.T) {
	srv, store, _ := newTestServer(t, &fakeBackend{})
	require.NoError(t, store.SaveAppliedCoupon(context.Background(), &coupon.AppliedCouponDetails{Code: "SAVE10"}))

	resp := doJSON(t, http.MethodDelete, srv.URL+"/coupons/applied", nil, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	applied, err := store.AppliedCoupon(context.Background())
	require.NoError(t, err)
	assert.Nil(t, applied)
}

// ============================================
// Router Tests
// ============================================

func TestRouter_MethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeBackend{})

	resp := doJSON(t, http.MethodDelete, srv.URL+"/cart", nil, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRouter_Health(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeBackend{})

	resp := doJSON(t, http.MethodGet, srv.URL+"/healthz", nil, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
