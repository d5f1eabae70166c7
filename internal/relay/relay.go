// Package relay forwards bus events to Kafka so downstream consumers
// (analytics, badge projections, notifications) can follow cart and
// coupon activity without coupling to the engine's process.
package relay

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/example/storefront-cart/internal/bus"
	"github.com/example/storefront-cart/internal/cart"
	"github.com/example/storefront-cart/internal/coupon"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// envelope is the message shape published to the topic.
type envelope struct {
	ID         string                       `json:"id"`
	Kind       string                       `json:"kind"`
	OccurredAt time.Time                    `json:"occurred_at"`
	Items      []cart.LineItem              `json:"items,omitempty"`
	Applied    *coupon.AppliedCouponDetails `json:"applied_coupon,omitempty"`
}

type Relay struct {
	bus    *bus.Bus
	writer *kafka.Writer
}

func New(brokers []string, topic string, b *bus.Bus) *Relay {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Relay{bus: b, writer: writer}
}

// Run subscribes to the bus and forwards events until the context is
// cancelled. Publish failures are logged and skipped; the relay is a
// tap, not a source of truth.
func (r *Relay) Run(ctx context.Context) error {
	events, cancel := r.bus.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if err := r.forward(ctx, e); err != nil {
				log.Printf("[Relay] Failed to publish %s: %v", e.Kind(), err)
			}
		}
	}
}

func (r *Relay) forward(ctx context.Context, e bus.Event) error {
	env := envelope{
		ID:         uuid.New().String(),
		Kind:       e.Kind(),
		OccurredAt: time.Now(),
	}
	switch ev := e.(type) {
	case bus.CartChanged:
		env.Items = ev.Items
	case bus.CouponChanged:
		env.Applied = ev.Applied
	}

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(env.Kind),
		Value: data,
		Time:  env.OccurredAt,
	})
}

func (r *Relay) Close() error {
	return r.writer.Close()
}
