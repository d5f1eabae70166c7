package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/storefront-cart/internal/cart"
	"github.com/example/storefront-cart/internal/coupon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cart.json")
	return NewFileStore(path), path
}

func TestFileStore_MissingFileLoadsEmpty(t *testing.T) {
	s, _ := newTestFileStore(t)

	items, err := s.Load(context.Background())

	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFileStore_RoundTrip(t *testing.T) {
	s, path := newTestFileStore(t)
	ctx := context.Background()
	saved := []cart.LineItem{
		{ID: "P1_V1", ProductID: "P1", VariantID: "V1", Name: "Mug", Price: 300, OriginalPrice: 400, Quantity: 2,
			VariantOptions: map[string]string{"color": "red"}, CategoryID: "kitchen"},
	}

	require.NoError(t, s.Save(ctx, saved))

	// A fresh store reading the same file sees the same cart.
	reopened := NewFileStore(path)
	items, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, saved[0], items[0])
}

func TestFileStore_CorruptFileLoadsEmpty(t *testing.T) {
	s, path := newTestFileStore(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	items, err := s.Load(context.Background())

	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFileStore_SavePreservesAppliedCoupon(t *testing.T) {
	s, _ := newTestFileStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveAppliedCoupon(ctx, &coupon.AppliedCouponDetails{Code: "SAVE10", DiscountAmount: 200}))

	// Overwriting items must not drop the separately persisted coupon.
	require.NoError(t, s.Save(ctx, []cart.LineItem{{ID: "P1", Quantity: 1}}))

	applied, err := s.AppliedCoupon(ctx)
	require.NoError(t, err)
	require.NotNil(t, applied)
	assert.Equal(t, "SAVE10", applied.Code)
}

func TestFileStore_UpsertAndRemove(t *testing.T) {
	s, _ := newTestFileStore(t)
	ctx := context.Background()

	items, err := s.Upsert(ctx, cart.LineItem{ProductID: "P1", Quantity: 1}, true)
	require.NoError(t, err)
	require.Len(t, items, 1)

	items, err = s.Upsert(ctx, cart.LineItem{ProductID: "P1", Quantity: 1}, true)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)

	items, err = s.Remove(ctx, "P1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFileStore_ClearAppliedCoupon(t *testing.T) {
	s, _ := newTestFileStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveAppliedCoupon(ctx, &coupon.AppliedCouponDetails{Code: "X"}))

	require.NoError(t, s.ClearAppliedCoupon(ctx))

	applied, err := s.AppliedCoupon(ctx)
	require.NoError(t, err)
	assert.Nil(t, applied)
}
