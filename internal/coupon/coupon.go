package coupon

import (
	"errors"
	"time"
)

type DiscountType string

const (
	Percentage DiscountType = "percentage"
	Fixed      DiscountType = "fixed"
)

// Wire values of the applyTo discriminant.
const (
	ApplyToProduct     = "product"
	ApplyToCategory    = "category"
	ApplyToSubcategory = "subcategory"
	ApplyToAbovePrice  = "above_price"
)

var (
	ErrInactive    = errors.New("coupon is not active")
	ErrExpired     = errors.New("coupon has expired")
	ErrExhausted   = errors.New("coupon usage limit reached")
	ErrMinPurchase = errors.New("minimum purchase not met")
)

// Scope is the dimension a coupon's discount is computed against. It is
// a sealed sum type: the wire format's applyTo discriminant plus shared
// field bag decodes into exactly one variant via NewScope.
type Scope interface {
	scope()
}

// ProductScope limits a coupon to specific products.
type ProductScope struct {
	ProductIDs []string
}

// CategoryScope matches cart items by their category id.
type CategoryScope struct {
	CategoryID string
}

// SubcategoryScope matches cart items by their subcategory id. The wire
// format stores the value under categoryId for both category scopes;
// the variant records which item field it compares against.
type SubcategoryScope struct {
	CategoryID string
}

// AbovePriceScope applies cart-wide once the subtotal clears the
// threshold. A zero MinPurchase means no threshold.
type AbovePriceScope struct {
	MinPurchase int
}

func (ProductScope) scope()     {}
func (CategoryScope) scope()    {}
func (SubcategoryScope) scope() {}
func (AbovePriceScope) scope()  {}

// NewScope decodes the wire discriminant and its field bag into a Scope
// variant. Unknown applyTo values return nil: the eligibility filter
// default-denies them and the base-amount computation safe-defaults to
// the full subtotal.
func NewScope(applyTo string, productIDs []string, categoryID string, minPurchase int) Scope {
	switch applyTo {
	case ApplyToProduct:
		return ProductScope{ProductIDs: productIDs}
	case ApplyToCategory:
		return CategoryScope{CategoryID: categoryID}
	case ApplyToSubcategory:
		return SubcategoryScope{CategoryID: categoryID}
	case ApplyToAbovePrice:
		return AbovePriceScope{MinPurchase: minPurchase}
	default:
		return nil
	}
}

// Coupon is a promotional code from the catalog. Amounts are minor
// currency units; DiscountAmount is percent points for Percentage and
// an absolute amount for Fixed. MaxDiscount and UsageLimit are
// unlimited when zero.
type Coupon struct {
	ID             string
	Code           string
	Description    string
	DiscountType   DiscountType
	DiscountAmount int
	MaxDiscount    int
	ApplyTo        string
	Scope          Scope
	ExpiryDate     time.Time
	IsActive       bool
	UsageLimit     int
	UsedCount      int
}

// Usable reports whether the coupon's gates pass: active, not expired
// and not exhausted. Scope matching is a separate concern.
func (c Coupon) Usable(now time.Time) bool {
	return c.usableErr(now) == nil
}

func (c Coupon) usableErr(now time.Time) error {
	if !c.IsActive {
		return ErrInactive
	}
	if !c.ExpiryDate.After(now) {
		return ErrExpired
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return ErrExhausted
	}
	return nil
}

// Validate checks the coupon's gates and, for an above-price scope, the
// subtotal threshold. The returned errors are the business-rule
// rejections surfaced verbatim to shoppers.
func (c Coupon) Validate(subtotal int, now time.Time) error {
	if err := c.usableErr(now); err != nil {
		return err
	}
	if s, ok := c.Scope.(AbovePriceScope); ok {
		if s.MinPurchase > 0 && subtotal < s.MinPurchase {
			return ErrMinPurchase
		}
	}
	return nil
}

// AppliedCouponDetails records a successfully applied coupon.
// DiscountAmount here is the computed currency amount, not the coupon's
// raw field. It is persisted separately from the cart line items and
// invalidated whenever the cart's contents change.
type AppliedCouponDetails struct {
	CouponID       string       `json:"coupon_id"`
	Code           string       `json:"code"`
	DiscountAmount int          `json:"discount_amount"`
	DiscountType   DiscountType `json:"discount_type"`
	ApplyTo        string       `json:"apply_to"`
}
