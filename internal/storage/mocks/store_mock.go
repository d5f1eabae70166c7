package mocks

import (
	"context"
	"sync"

	"github.com/example/storefront-cart/internal/cart"
	"github.com/example/storefront-cart/internal/coupon"
)

// MockStore is an in-memory Store implementation that records calls
// for assertions and lets tests inject failures.
type MockStore struct {
	mu      sync.Mutex
	items   []cart.LineItem
	applied *coupon.AppliedCouponDetails

	// For tracking calls in tests
	SaveCalls   [][]cart.LineItem
	UpsertCalls []UpsertCall
	RemoveCalls []string
	ClearCalls  int

	CouponSaves  []*coupon.AppliedCouponDetails
	CouponClears int

	// Errors returned when set
	SaveErr   error
	UpsertErr error
	LoadErr   error
}

// UpsertCall records parameters passed to Upsert
type UpsertCall struct {
	Item      cart.LineItem
	Increment bool
}

func NewMockStore() *MockStore {
	return &MockStore{}
}

func (m *MockStore) Load(ctx context.Context) ([]cart.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	out := make([]cart.LineItem, len(m.items))
	copy(out, m.items)
	return out, nil
}

func (m *MockStore) Save(ctx context.Context, items []cart.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := make([]cart.LineItem, len(items))
	copy(saved, items)
	m.SaveCalls = append(m.SaveCalls, saved)
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.items = saved
	return nil
}

func (m *MockStore) Upsert(ctx context.Context, item cart.LineItem, increment bool) ([]cart.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls = append(m.UpsertCalls, UpsertCall{Item: item, Increment: increment})
	if m.UpsertErr != nil {
		return nil, m.UpsertErr
	}
	items, err := cart.Upsert(m.items, item, increment)
	if err != nil {
		return m.items, err
	}
	m.items = items
	out := make([]cart.LineItem, len(items))
	copy(out, items)
	return out, nil
}

func (m *MockStore) Remove(ctx context.Context, id string) ([]cart.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RemoveCalls = append(m.RemoveCalls, id)
	m.items = cart.Remove(m.items, id)
	out := make([]cart.LineItem, len(m.items))
	copy(out, m.items)
	return out, nil
}

func (m *MockStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClearCalls++
	m.items = nil
	return nil
}

func (m *MockStore) AppliedCoupon(ctx context.Context) (*coupon.AppliedCouponDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applied == nil {
		return nil, nil
	}
	cp := *m.applied
	return &cp, nil
}

func (m *MockStore) SaveAppliedCoupon(ctx context.Context, details *coupon.AppliedCouponDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CouponSaves = append(m.CouponSaves, details)
	if details == nil {
		m.applied = nil
		return nil
	}
	cp := *details
	m.applied = &cp
	return nil
}

func (m *MockStore) ClearAppliedCoupon(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CouponClears++
	m.applied = nil
	return nil
}

// SetItems seeds the store state directly for testing
func (m *MockStore) SetItems(items []cart.LineItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make([]cart.LineItem, len(items))
	copy(m.items, items)
}

// SetApplied seeds the applied coupon directly for testing
func (m *MockStore) SetApplied(details *coupon.AppliedCouponDetails) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied = details
}

// Reset clears state and recorded calls
func (m *MockStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = nil
	m.applied = nil
	m.SaveCalls = nil
	m.UpsertCalls = nil
	m.RemoveCalls = nil
	m.ClearCalls = 0
	m.CouponSaves = nil
	m.CouponClears = 0
	m.SaveErr = nil
	m.UpsertErr = nil
	m.LoadErr = nil
}
