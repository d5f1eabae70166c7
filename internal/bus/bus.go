// Package bus is the in-process notification channel between the cart
// core and its consumers (sidebar, badge, relay). Events carry the new
// snapshot so subscribers never need to re-read the store just to learn
// what changed.
package bus

import (
	"log"
	"sync"

	"github.com/example/storefront-cart/internal/cart"
	"github.com/example/storefront-cart/internal/coupon"
)

// Event is a sealed union of the two notification kinds.
type Event interface {
	Kind() string
}

// CartChanged fires after any mutation of the cart line items.
type CartChanged struct {
	Items []cart.LineItem
}

// CouponChanged fires when the applied coupon is set or cleared.
// Applied is nil when the coupon was invalidated.
type CouponChanged struct {
	Applied *coupon.AppliedCouponDetails
}

func (CartChanged) Kind() string   { return "cart-changed" }
func (CouponChanged) Kind() string { return "coupon-changed" }

const subscriberBuffer = 16

// Bus fans events out to subscribers. Publish never blocks the
// mutating caller: delivery goes through buffered channels and a full
// subscriber drops the event with a log line. Subscribers can always
// recover by re-reading the store.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func New() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener. The returned cancel func must be
// called to release the subscription.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			log.Printf("[Bus] Subscriber %d full, dropping %s", id, e.Kind())
		}
	}
}
