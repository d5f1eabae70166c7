package upstream

import (
	"time"

	"github.com/example/storefront-cart/internal/coupon"
)

// Direction is the scoped quantity mutation the server cart API
// accepts. The server computes the new quantity itself; the client
// never sends an absolute target.
type Direction string

const (
	Increment Direction = "increment"
	Decrement Direction = "decrement"
)

// ProductWire is the nested product payload on a server cart line.
type ProductWire struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Image         string `json:"image,omitempty"`
	Price         int    `json:"price"`
	OfferPrice    int    `json:"offerPrice,omitempty"`
	CategoryID    string `json:"categoryId,omitempty"`
	SubcategoryID string `json:"subcategoryId,omitempty"`
}

// VariantWire is the nested variant payload on a server cart line.
type VariantWire struct {
	ID         string            `json:"id"`
	Price      int               `json:"price,omitempty"`
	OfferPrice int               `json:"offerPrice,omitempty"`
	Options    map[string]string `json:"options,omitempty"`
}

// CartLineWire is one line of the authoritative server cart.
type CartLineWire struct {
	Product  ProductWire  `json:"product"`
	Variant  *VariantWire `json:"variant,omitempty"`
	Quantity int          `json:"quantity"`
}

// cartPayload is the full cart envelope every cart mutation returns.
type cartPayload struct {
	Items []CartLineWire `json:"items"`
}

// CouponWire is the catalog API's coupon shape: the applyTo
// discriminant plus the shared productIds/categoryId field bag.
type CouponWire struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	Description    string    `json:"description"`
	DiscountType   string    `json:"discountType"`
	DiscountAmount int       `json:"discountAmount"`
	MaxDiscount    int       `json:"maxDiscount,omitempty"`
	MinPurchase    int       `json:"minPurchase,omitempty"`
	ApplyTo        string    `json:"applyTo"`
	ProductIDs     []string  `json:"productIds,omitempty"`
	CategoryID     string    `json:"categoryId,omitempty"`
	ExpiryDate     time.Time `json:"expiryDate"`
	IsActive       bool      `json:"isActive"`
	UsageLimit     int       `json:"usageLimit,omitempty"`
	UsedCount      int       `json:"usedCount"`
}

// ToCoupon decodes the wire shape into the domain model, resolving the
// applyTo discriminant into a scope variant.
func (w CouponWire) ToCoupon() coupon.Coupon {
	return coupon.Coupon{
		ID:             w.ID,
		Code:           w.Code,
		Description:    w.Description,
		DiscountType:   coupon.DiscountType(w.DiscountType),
		DiscountAmount: w.DiscountAmount,
		MaxDiscount:    w.MaxDiscount,
		ApplyTo:        w.ApplyTo,
		Scope:          coupon.NewScope(w.ApplyTo, w.ProductIDs, w.CategoryID, w.MinPurchase),
		ExpiryDate:     w.ExpiryDate,
		IsActive:       w.IsActive,
		UsageLimit:     w.UsageLimit,
		UsedCount:      w.UsedCount,
	}
}

// CouponDetailsWire is the couponDetails block of a successful apply.
type CouponDetailsWire struct {
	CouponID       string `json:"couponId"`
	Code           string `json:"code"`
	DiscountAmount int    `json:"discountAmount"`
	DiscountType   string `json:"discountType"`
	ApplyTo        string `json:"applyTo"`
}

// ApplyEnvelope is the coupon-apply response. Fields beyond
// CouponDetails are preserved so a locally recomputed discount can be
// merged in without losing what the server sent.
type ApplyEnvelope struct {
	Success       bool              `json:"success"`
	Message       string            `json:"message,omitempty"`
	CouponDetails CouponDetailsWire `json:"couponDetails"`
	Subtotal      int               `json:"subtotal,omitempty"`
	GrandTotal    int               `json:"grandTotal,omitempty"`
}
