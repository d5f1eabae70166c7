package coupon

import "github.com/example/storefront-cart/internal/cart"

// BaseAmount computes the portion of the cart's value the coupon's
// discount applies to. Scoped rules sum price*quantity over matching
// items only; a scoped coupon matching nothing yields a zero base, so
// nominal eligibility never guarantees a non-zero discount. Above-price
// and unrecognized scopes use the full subtotal.
func BaseAmount(c Coupon, items []cart.LineItem, subtotal int) int {
	switch s := c.Scope.(type) {
	case ProductScope:
		base := 0
		for _, it := range items {
			for _, id := range s.ProductIDs {
				if it.ProductID == id {
					base += it.Price * it.Quantity
					break
				}
			}
		}
		return base
	case CategoryScope:
		base := 0
		for _, it := range items {
			if it.CategoryID == s.CategoryID {
				base += it.Price * it.Quantity
			}
		}
		return base
	case SubcategoryScope:
		base := 0
		for _, it := range items {
			if it.SubcategoryID == s.CategoryID {
				base += it.Price * it.Quantity
			}
		}
		return base
	default:
		return subtotal
	}
}

// Discount computes the bounded discount amount against a base.
// Percentage discounts floor to whole currency units and respect
// MaxDiscount; fixed discounts never exceed the scoped base.
func Discount(c Coupon, base int) int {
	if base <= 0 {
		return 0
	}
	switch c.DiscountType {
	case Percentage:
		d := base * c.DiscountAmount / 100
		if c.MaxDiscount > 0 && d > c.MaxDiscount {
			d = c.MaxDiscount
		}
		return d
	case Fixed:
		if c.DiscountAmount > base {
			return base
		}
		return c.DiscountAmount
	default:
		return 0
	}
}

// Compute runs the full local discount calculation for one coupon.
func Compute(c Coupon, items []cart.LineItem, subtotal int) (base, discount int) {
	base = BaseAmount(c, items, subtotal)
	return base, Discount(c, base)
}
