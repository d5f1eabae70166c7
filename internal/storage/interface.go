// Package storage owns the durable cart representation. All cart and
// applied-coupon persistence goes through the Store interface; nothing
// else in the engine touches the underlying medium directly.
package storage

import (
	"context"

	"github.com/example/storefront-cart/internal/cart"
	"github.com/example/storefront-cart/internal/coupon"
)

// Store is the injectable persistence contract for the cart core.
// Implementations never touch the network and never publish events;
// event publication belongs to the services mutating through them.
//
// Load must treat an absent or corrupt representation as an empty cart
// and return no error. Save fully overwrites prior content, so the last
// write always wins.
type Store interface {
	Load(ctx context.Context) ([]cart.LineItem, error)
	Save(ctx context.Context, items []cart.LineItem) error

	// Upsert applies one item and returns the resulting cart. An
	// existing id has its quantity replaced, or summed when increment
	// is set. Items with a non-positive quantity are rejected.
	Upsert(ctx context.Context, item cart.LineItem, increment bool) ([]cart.LineItem, error)

	// Remove drops the line item with the given id and returns the
	// resulting cart. Removing an absent id is a no-op.
	Remove(ctx context.Context, id string) ([]cart.LineItem, error)

	Clear(ctx context.Context) error

	// AppliedCoupon returns the persisted applied-coupon record, or nil
	// when none is set.
	AppliedCoupon(ctx context.Context) (*coupon.AppliedCouponDetails, error)
	SaveAppliedCoupon(ctx context.Context, details *coupon.AppliedCouponDetails) error
	ClearAppliedCoupon(ctx context.Context) error
}
