package coupon

import (
	"strings"
	"time"

	"github.com/example/storefront-cart/internal/cart"
)

// Eligible returns the subset of coupons the cart currently qualifies
// for. An empty cart qualifies for nothing. Coupons whose gates fail or
// whose scope matches no cart dimension are excluded; unknown scopes
// are rejected outright.
func Eligible(coupons []Coupon, items []cart.LineItem, subtotal int, now time.Time) []Coupon {
	if len(items) == 0 {
		return nil
	}

	out := make([]Coupon, 0, len(coupons))
	for _, c := range coupons {
		if !c.Usable(now) {
			continue
		}
		if scopeMatches(c.Scope, items, subtotal) {
			out = append(out, c)
		}
	}
	return out
}

func scopeMatches(scope Scope, items []cart.LineItem, subtotal int) bool {
	switch s := scope.(type) {
	case ProductScope:
		if len(s.ProductIDs) == 0 {
			return false
		}
		for _, it := range items {
			for _, id := range s.ProductIDs {
				if it.ProductID == id {
					return true
				}
			}
		}
		return false
	case CategoryScope:
		if s.CategoryID == "" {
			return false
		}
		for _, it := range items {
			if it.CategoryID == s.CategoryID {
				return true
			}
		}
		return false
	case SubcategoryScope:
		if s.CategoryID == "" {
			return false
		}
		for _, it := range items {
			if it.SubcategoryID == s.CategoryID {
				return true
			}
		}
		return false
	case AbovePriceScope:
		return s.MinPurchase == 0 || subtotal >= s.MinPurchase
	default:
		return false
	}
}

// FilterSearch narrows coupons by a case-insensitive substring match on
// code or description. It is a display convenience layered on top of
// eligibility, not an eligibility rule; an empty query keeps everything.
func FilterSearch(coupons []Coupon, query string) []Coupon {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" {
		return coupons
	}
	out := make([]Coupon, 0, len(coupons))
	for _, c := range coupons {
		if strings.Contains(strings.ToLower(c.Code), query) ||
			strings.Contains(strings.ToLower(c.Description), query) {
			out = append(out, c)
		}
	}
	return out
}
