package storage

import (
	"context"
	"sync"

	"github.com/example/storefront-cart/internal/cart"
	"github.com/example/storefront-cart/internal/coupon"
)

// MemoryStore keeps the cart in process memory. It backs guest
// sessions in ephemeral deployments and most tests.
type MemoryStore struct {
	mu      sync.RWMutex
	items   []cart.LineItem
	applied *coupon.AppliedCouponDetails
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) ([]cart.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyItems(s.items), nil
}

func (s *MemoryStore) Save(ctx context.Context, items []cart.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = copyItems(items)
	return nil
}

func (s *MemoryStore) Upsert(ctx context.Context, item cart.LineItem, increment bool) ([]cart.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := cart.Upsert(s.items, item, increment)
	if err != nil {
		return copyItems(s.items), err
	}
	s.items = items
	return copyItems(items), nil
}

func (s *MemoryStore) Remove(ctx context.Context, id string) ([]cart.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = cart.Remove(s.items, id)
	return copyItems(s.items), nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	return nil
}

func (s *MemoryStore) AppliedCoupon(ctx context.Context) (*coupon.AppliedCouponDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.applied == nil {
		return nil, nil
	}
	cp := *s.applied
	return &cp, nil
}

func (s *MemoryStore) SaveAppliedCoupon(ctx context.Context, details *coupon.AppliedCouponDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if details == nil {
		s.applied = nil
		return nil
	}
	cp := *details
	s.applied = &cp
	return nil
}

func (s *MemoryStore) ClearAppliedCoupon(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = nil
	return nil
}

func copyItems(items []cart.LineItem) []cart.LineItem {
	out := make([]cart.LineItem, len(items))
	copy(out, items)
	return out
}
