// Package discount applies coupons against the cart, reconciling the
// server's answer with the local computation when the two disagree.
package discount

import (
	"context"
	"log"
	"time"

	"github.com/example/storefront-cart/internal/bus"
	"github.com/example/storefront-cart/internal/cart"
	"github.com/example/storefront-cart/internal/coupon"
	"github.com/example/storefront-cart/internal/session"
	"github.com/example/storefront-cart/internal/storage"
	"github.com/example/storefront-cart/internal/upstream"
)

// Source records how a successful apply was computed, so callers and
// tests can tell a server-confirmed discount from a local recovery
// without reading logs.
type Source string

const (
	// SourceServer means the server confirmed the discount as-is.
	SourceServer Source = "server"
	// SourceLocal means the discount was computed (or corrected)
	// locally: guest sessions, the cart-not-found recovery, and the
	// zero-discount substitution all land here.
	SourceLocal Source = "local"
)

// Result is a successful coupon application.
type Result struct {
	Source   Source
	Details  coupon.AppliedCouponDetails
	Base     int
	Envelope *upstream.ApplyEnvelope
}

// Applier is the slice of the server API this service needs.
type Applier interface {
	ApplyCoupon(ctx context.Context, couponID string) (*upstream.ApplyEnvelope, error)
}

type Service struct {
	store    storage.Store
	bus      *bus.Bus
	upstream Applier
	now      func() time.Time
}

func NewService(store storage.Store, b *bus.Bus, up Applier) *Service {
	return &Service{store: store, bus: b, upstream: up, now: time.Now}
}

// Apply computes and persists the discount for one coupon.
//
// Authenticated sessions ask the server first. Two disagreement modes
// are recovered silently: a server success carrying a zero discount
// when the local scope matches real items (the local number is merged
// into the server envelope), and the cart-not-found error class (the
// whole computation runs locally). Every other server error is a
// genuine rejection and is returned verbatim.
func (s *Service) Apply(ctx context.Context, c coupon.Coupon) (*Result, error) {
	items, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	subtotal := cart.Subtotal(items, nil)

	if err := c.Validate(subtotal, s.now()); err != nil {
		return nil, err
	}

	if !session.FromContext(ctx).Authenticated {
		res := s.localResult(c, items, subtotal, nil)
		return res, s.persist(ctx, res)
	}

	envelope, err := s.upstream.ApplyCoupon(ctx, c.ID)
	if err != nil {
		if upstream.IsCartNotFound(err) {
			log.Printf("[Discount] No server cart for coupon %s, computing locally", c.Code)
			res := s.localResult(c, items, subtotal, nil)
			return res, s.persist(ctx, res)
		}
		return nil, err
	}

	base, local := coupon.Compute(c, items, subtotal)
	if envelope.CouponDetails.DiscountAmount == 0 && local > 0 {
		// Server found nothing to discount but the local cart has
		// matching items; trust the local math and keep the rest of
		// the server envelope.
		log.Printf("[Discount] Server returned zero for coupon %s, substituting local amount %d", c.Code, local)
		res := s.localResult(c, items, subtotal, envelope)
		return res, s.persist(ctx, res)
	}

	res := &Result{
		Source: SourceServer,
		Details: coupon.AppliedCouponDetails{
			CouponID:       c.ID,
			Code:           c.Code,
			DiscountAmount: envelope.CouponDetails.DiscountAmount,
			DiscountType:   c.DiscountType,
			ApplyTo:        c.ApplyTo,
		},
		Base:     base,
		Envelope: envelope,
	}
	return res, s.persist(ctx, res)
}

// Remove clears the applied coupon.
func (s *Service) Remove(ctx context.Context) error {
	if err := s.store.ClearAppliedCoupon(ctx); err != nil {
		return err
	}
	s.bus.Publish(bus.CouponChanged{Applied: nil})
	return nil
}

func (s *Service) localResult(c coupon.Coupon, items []cart.LineItem, subtotal int, envelope *upstream.ApplyEnvelope) *Result {
	base, amount := coupon.Compute(c, items, subtotal)
	details := coupon.AppliedCouponDetails{
		CouponID:       c.ID,
		Code:           c.Code,
		DiscountAmount: amount,
		DiscountType:   c.DiscountType,
		ApplyTo:        c.ApplyTo,
	}
	if envelope != nil {
		merged := *envelope
		merged.CouponDetails.DiscountAmount = amount
		envelope = &merged
	}
	return &Result{
		Source:   SourceLocal,
		Details:  details,
		Base:     base,
		Envelope: envelope,
	}
}

func (s *Service) persist(ctx context.Context, res *Result) error {
	if err := s.store.SaveAppliedCoupon(ctx, &res.Details); err != nil {
		return err
	}
	s.bus.Publish(bus.CouponChanged{Applied: &res.Details})
	return nil
}
