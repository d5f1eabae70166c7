package bus

import (
	"testing"
	"time"

	"github.com/example/storefront-cart/internal/cart"
	"github.com/example/storefront-cart/internal/coupon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishDeliversToAllSubscribers(t *testing.T) {
	b := New()
	ch1, cancel1 := b.Subscribe()
	defer cancel1()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()

	b.Publish(CartChanged{Items: []cart.LineItem{{ID: "P1"}}})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			changed, ok := e.(CartChanged)
			require.True(t, ok)
			require.Len(t, changed.Items, 1)
			assert.Equal(t, "P1", changed.Items[0].ID)
		case <-time.After(time.Second):
			t.Fatal("expected event")
		}
	}
}

func TestBus_CouponChangedCarriesSnapshot(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(CouponChanged{Applied: &coupon.AppliedCouponDetails{Code: "SAVE10", DiscountAmount: 200}})

	e := <-ch
	changed, ok := e.(CouponChanged)
	require.True(t, ok)
	require.NotNil(t, changed.Applied)
	assert.Equal(t, "SAVE10", changed.Applied.Code)
	assert.Equal(t, "coupon-changed", changed.Kind())
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	b := New()
	_, cancel := b.Subscribe()
	defer cancel()

	// Nobody is reading; publishing past the buffer must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			b.Publish(CartChanged{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestBus_CancelledSubscriberStopsReceiving(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()
	cancel()

	b.Publish(CartChanged{})

	_, open := <-ch
	assert.False(t, open)
}
