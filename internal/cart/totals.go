package cart

// Totals is the derived payable breakdown for a cart. Shipping is
// always zero in this storefront; the field exists so the payload shape
// is stable for consumers.
type Totals struct {
	Subtotal       int `json:"subtotal"`
	Discount       int `json:"discount"`
	CouponDiscount int `json:"coupon_discount"`
	Shipping       int `json:"shipping"`
	Total          int `json:"total"`
}

// DeriveTotals combines subtotal, a general discount and the computed
// coupon discount into the final payable total.
func DeriveTotals(subtotal, discount, couponDiscount int) Totals {
	return Totals{
		Subtotal:       subtotal,
		Discount:       discount,
		CouponDiscount: couponDiscount,
		Shipping:       0,
		Total:          subtotal - discount - couponDiscount,
	}
}
