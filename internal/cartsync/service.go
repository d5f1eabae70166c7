// Package cartsync bridges the persisted cart store to the
// authoritative server cart for authenticated sessions and is a local
// pass-through for guests. Sync failures are absorbed: the local store
// is left untouched and keeps serving the UI.
package cartsync

import (
	"context"
	"log"
	"sync"

	"github.com/example/storefront-cart/internal/bus"
	"github.com/example/storefront-cart/internal/cart"
	"github.com/example/storefront-cart/internal/session"
	"github.com/example/storefront-cart/internal/storage"
	"github.com/example/storefront-cart/internal/upstream"
)

// UpstreamCart is the slice of the server API this service needs.
type UpstreamCart interface {
	FetchCart(ctx context.Context) ([]upstream.CartLineWire, error)
	ChangeQuantity(ctx context.Context, productID, variantID string, dir upstream.Direction) ([]upstream.CartLineWire, error)
	RemoveItem(ctx context.Context, productID, variantID string) ([]upstream.CartLineWire, error)
}

type Service struct {
	store    storage.Store
	bus      *bus.Bus
	upstream UpstreamCart

	// Per-item locks serialize concurrent quantity mutations for the
	// same line, so rapid double-clicks cannot race each other into
	// the direction decision.
	lockMu    sync.Mutex
	itemLocks map[string]*sync.Mutex
}

func NewService(store storage.Store, b *bus.Bus, up UpstreamCart) *Service {
	return &Service{
		store:     store,
		bus:       b,
		upstream:  up,
		itemLocks: make(map[string]*sync.Mutex),
	}
}

// Normalize maps server cart lines into local line items. Unit price
// follows the fallback chain product.offerPrice -> product.price ->
// variant.offerPrice -> variant.price; the undiscounted original falls
// back from product.price to variant.price.
func Normalize(lines []upstream.CartLineWire) []cart.LineItem {
	items := make([]cart.LineItem, 0, len(lines))
	for _, line := range lines {
		variantID := ""
		var options map[string]string
		if line.Variant != nil {
			variantID = line.Variant.ID
			options = line.Variant.Options
		}

		price := line.Product.OfferPrice
		if price == 0 {
			price = line.Product.Price
		}
		if price == 0 && line.Variant != nil {
			price = line.Variant.OfferPrice
			if price == 0 {
				price = line.Variant.Price
			}
		}
		original := line.Product.Price
		if original == 0 && line.Variant != nil {
			original = line.Variant.Price
		}

		items = append(items, cart.LineItem{
			ID:             cart.LineID(line.Product.ID, variantID),
			ProductID:      line.Product.ID,
			VariantID:      variantID,
			Name:           line.Product.Name,
			Image:          line.Product.Image,
			Price:          price,
			OriginalPrice:  original,
			Quantity:       line.Quantity,
			VariantOptions: options,
			CategoryID:     line.Product.CategoryID,
			SubcategoryID:  line.Product.SubcategoryID,
		})
	}
	return items
}

// SyncFromServer overwrites the local store with the authoritative
// server cart. For guests it simply returns the local cart. Any
// upstream failure is logged and the previous local state stays
// authoritative; sync never surfaces an error to the shopper.
func (s *Service) SyncFromServer(ctx context.Context) []cart.LineItem {
	local, _ := s.store.Load(ctx)
	if !session.FromContext(ctx).Authenticated {
		return local
	}

	lines, err := s.upstream.FetchCart(ctx)
	if err != nil {
		if upstream.IsCartNotFound(err) {
			// No server-side cart yet; local history stands.
			return local
		}
		log.Printf("[Sync] Cart fetch failed, keeping local state: %v", err)
		return local
	}

	items := Normalize(lines)
	if err := s.overwrite(ctx, items); err != nil {
		log.Printf("[Sync] Failed to persist server cart: %v", err)
		return local
	}
	return items
}

// AddItem puts an item into the cart, summing quantity when the same
// product+variant is already present.
func (s *Service) AddItem(ctx context.Context, item cart.LineItem) ([]cart.LineItem, error) {
	items, err := s.store.Upsert(ctx, item, true)
	if err != nil {
		return items, err
	}
	s.invalidateCoupon(ctx)
	s.bus.Publish(bus.CartChanged{Items: items})
	return items, nil
}

// ChangeQuantity moves a line to the target quantity. The direction
// sent upstream is decided by comparing the target against the last
// known quantity; the server computes the new quantity itself and
// returns the full cart, which replaces the local store wholesale.
// Guests mutate locally. Upstream failures are absorbed and the
// pre-mutation cart is returned.
func (s *Service) ChangeQuantity(ctx context.Context, id string, target int) ([]cart.LineItem, error) {
	if target < 1 {
		return s.store.Load(ctx)
	}

	lock := s.itemLock(id)
	lock.Lock()
	defer lock.Unlock()

	items, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	current, ok := cart.Find(items, id)
	if !ok || current.Quantity == target {
		return items, nil
	}

	if !session.FromContext(ctx).Authenticated {
		current.Quantity = target
		items, err := s.store.Upsert(ctx, current, false)
		if err != nil {
			return items, err
		}
		s.invalidateCoupon(ctx)
		s.bus.Publish(bus.CartChanged{Items: items})
		return items, nil
	}

	dir := upstream.Increment
	if target < current.Quantity {
		dir = upstream.Decrement
	}
	lines, err := s.upstream.ChangeQuantity(ctx, current.ProductID, current.VariantID, dir)
	if err != nil {
		log.Printf("[Sync] Quantity change failed for %s, keeping local state: %v", id, err)
		return items, nil
	}

	normalized := Normalize(lines)
	if err := s.overwrite(ctx, normalized); err != nil {
		return items, err
	}
	return normalized, nil
}

// RemoveItem drops a line from the cart. Authenticated sessions
// delegate to the server removal endpoint and take its returned cart;
// guests remove locally. Upstream failures are absorbed.
func (s *Service) RemoveItem(ctx context.Context, id string) ([]cart.LineItem, error) {
	items, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	current, ok := cart.Find(items, id)
	if !ok {
		return items, nil
	}

	if session.FromContext(ctx).Authenticated {
		lines, err := s.upstream.RemoveItem(ctx, current.ProductID, current.VariantID)
		if err != nil {
			log.Printf("[Sync] Remove failed for %s, keeping local state: %v", id, err)
			return items, nil
		}
		normalized := Normalize(lines)
		if err := s.overwrite(ctx, normalized); err != nil {
			return items, err
		}
		return normalized, nil
	}

	remaining, err := s.store.Remove(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidateCoupon(ctx)
	s.bus.Publish(bus.CartChanged{Items: remaining})
	return remaining, nil
}

// Clear empties the cart and the applied coupon.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.invalidateCoupon(ctx)
	s.bus.Publish(bus.CartChanged{})
	return nil
}

// CompleteCheckout clears the cart and coupon after an order is placed.
func (s *Service) CompleteCheckout(ctx context.Context) error {
	return s.Clear(ctx)
}

// overwrite replaces the local store with a normalized server cart and
// notifies subscribers. A full overwrite invalidates the applied
// coupon like any other content change.
func (s *Service) overwrite(ctx context.Context, items []cart.LineItem) error {
	if err := s.store.Save(ctx, items); err != nil {
		return err
	}
	s.invalidateCoupon(ctx)
	s.bus.Publish(bus.CartChanged{Items: items})
	return nil
}

// invalidateCoupon clears the applied coupon after any cart content
// change. A stale computed discount is worse than asking the shopper
// to re-apply, so invalidation is unconditional.
func (s *Service) invalidateCoupon(ctx context.Context) {
	applied, err := s.store.AppliedCoupon(ctx)
	if err != nil || applied == nil {
		return
	}
	if err := s.store.ClearAppliedCoupon(ctx); err != nil {
		log.Printf("[Sync] Failed to clear applied coupon: %v", err)
		return
	}
	s.bus.Publish(bus.CouponChanged{Applied: nil})
}

func (s *Service) itemLock(id string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	if l, ok := s.itemLocks[id]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.itemLocks[id] = l
	return l
}
