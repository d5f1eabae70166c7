package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/example/storefront-cart/internal/cart"
	"github.com/example/storefront-cart/internal/cartsync"
	"github.com/example/storefront-cart/internal/coupon"
	"github.com/example/storefront-cart/internal/discount"
	"github.com/example/storefront-cart/internal/storage"
	"github.com/example/storefront-cart/internal/upstream"
)

// CouponCatalog is the slice of the server API the coupon listing
// needs.
type CouponCatalog interface {
	ListCoupons(ctx context.Context) ([]coupon.Coupon, error)
	SearchCoupons(ctx context.Context, query string) ([]coupon.Coupon, error)
}

type Handlers struct {
	store    storage.Store
	sync     *cartsync.Service
	discount *discount.Service
	catalog  CouponCatalog
	searcher *coupon.Searcher
}

func NewHandlers(store storage.Store, syncSvc *cartsync.Service, discountSvc *discount.Service, catalog CouponCatalog, searcher *coupon.Searcher) *Handlers {
	return &Handlers{
		store:    store,
		sync:     syncSvc,
		discount: discountSvc,
		catalog:  catalog,
		searcher: searcher,
	}
}

// cartResponse is the payload every cart-returning endpoint shares.
type cartResponse struct {
	Items         []cart.LineItem              `json:"items"`
	Totals        cart.Totals                  `json:"totals"`
	AppliedCoupon *coupon.AppliedCouponDetails `json:"applied_coupon,omitempty"`
}

func (h *Handlers) cartResponseFor(r *http.Request, items []cart.LineItem) cartResponse {
	applied, _ := h.store.AppliedCoupon(r.Context())
	couponDiscount := 0
	if applied != nil {
		couponDiscount = applied.DiscountAmount
	}
	subtotal := cart.Subtotal(items, nil)
	return cartResponse{
		Items:         items,
		Totals:        cart.DeriveTotals(subtotal, 0, couponDiscount),
		AppliedCoupon: applied,
	}
}

// Cart handlers

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.Load(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponseFor(r, items))
}

func (h *Handlers) AddItem(w http.ResponseWriter, r *http.Request) {
	var item cart.LineItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	items, err := h.sync.AddItem(r.Context(), item)
	if err != nil {
		if errors.Is(err, cart.ErrInvalidQuantity) || errors.Is(err, cart.ErrMissingID) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponseFor(r, items))
}

func (h *Handlers) ChangeQuantity(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/cart/items/")
	if id == "" {
		http.Error(w, "line item id is required", http.StatusBadRequest)
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	items, err := h.sync.ChangeQuantity(r.Context(), id, req.Quantity)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponseFor(r, items))
}

func (h *Handlers) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/cart/items/")
	if id == "" {
		http.Error(w, "line item id is required", http.StatusBadRequest)
		return
	}

	items, err := h.sync.RemoveItem(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponseFor(r, items))
}

func (h *Handlers) SyncCart(w http.ResponseWriter, r *http.Request) {
	items := h.sync.SyncFromServer(r.Context())
	respondJSON(w, http.StatusOK, h.cartResponseFor(r, items))
}

func (h *Handlers) CompleteCheckout(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.CompleteCheckout(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Checkout completed"})
}

// Coupon handlers

func (h *Handlers) ListCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query().Get("q")

	var (
		coupons []coupon.Coupon
		err     error
	)
	if query != "" {
		coupons, err = h.searcher.Search(ctx, query)
		if errors.Is(err, coupon.ErrSuperseded) {
			// A newer keystroke took over; its request carries the data.
			w.WriteHeader(http.StatusNoContent)
			return
		}
	} else {
		coupons, err = h.catalog.ListCoupons(ctx)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	items, err := h.store.Load(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	subtotal := cart.Subtotal(items, nil)
	eligible := coupon.Eligible(coupons, items, subtotal, time.Now())
	eligible = coupon.FilterSearch(eligible, query)

	respondJSON(w, http.StatusOK, map[string]any{"coupons": eligible})
}

func (h *Handlers) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CouponID string `json:"coupon_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.CouponID == "" {
		http.Error(w, "coupon_id is required", http.StatusBadRequest)
		return
	}

	c, ok, err := h.findCoupon(r, req.CouponID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if !ok {
		http.Error(w, "Coupon not found", http.StatusNotFound)
		return
	}

	result, err := h.discount.Apply(r.Context(), c)
	if err != nil {
		respondApplyError(w, err)
		return
	}

	items, _ := h.store.Load(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"source":  result.Source,
		"applied": result.Details,
		"base":    result.Base,
		"cart":    h.cartResponseFor(r, items),
	})
}

func (h *Handlers) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.discount.Remove(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Coupon removed"})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) findCoupon(r *http.Request, id string) (coupon.Coupon, bool, error) {
	coupons, err := h.catalog.ListCoupons(r.Context())
	if err != nil {
		return coupon.Coupon{}, false, err
	}
	for _, c := range coupons {
		if c.ID == id {
			return c, true, nil
		}
	}
	return coupon.Coupon{}, false, nil
}

// respondApplyError maps coupon-apply failures onto HTTP statuses.
// Business-rule rejections surface with their own message; upstream
// errors keep their status.
func respondApplyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, coupon.ErrInactive),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrExhausted),
		errors.Is(err, coupon.ErrMinPurchase):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.Status
		if status < 400 {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, apiErr.Error(), status)
		return
	}
	http.Error(w, err.Error(), http.StatusBadGateway)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func extractPathParam(path, prefix string) string {
	return strings.TrimPrefix(path, prefix)
}
