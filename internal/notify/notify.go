// Package notify fans order change events out to interested consumers. A Hub
// forwards every published event to the message bus and to the subscribers
// registered in the current process; consumers treat an event as a prompt to
// re-read the order, never as the source of truth.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/internal/messaging"
)

// TypeOrderUpdate is emitted whenever an order is created or changed.
const TypeOrderUpdate = "order_update"

// Event is the payload published on the orders channel.
type Event struct {
	Type    string    `json:"type"`
	OrderID int64     `json:"orderId"`
	At      time.Time `json:"at"`
}

// OrderUpdate builds an order_update event for id.
func OrderUpdate(id int64) Event {
	return Event{Type: TypeOrderUpdate, OrderID: id, At: time.Now().UTC()}
}

// Publisher emits events.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Subscriber receives events.
type Subscriber interface {
	Notify(ctx context.Context, evt Event)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, evt Event)

// Notify calls f.
func (f SubscriberFunc) Notify(ctx context.Context, evt Event) { f(ctx, evt) }

// Module provides the Hub and exposes it as a Publisher.
var Module = fx.Provide(
	NewHub,
	func(h *Hub) Publisher { return h },
)

type subscription struct {
	name string
	sub  Subscriber
}

// Hub is the process-wide publish point.
type Hub struct {
	client messaging.Client
	logger *zap.Logger

	mu   sync.RWMutex
	next int
	subs map[int]subscription
}

// NewHub constructs a Hub that forwards to client. A nil client keeps
// delivery in-process.
func NewHub(client messaging.Client, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{client: client, logger: logger, subs: make(map[int]subscription)}
}

// Subscribe registers s under name and returns a function that removes it.
func (h *Hub) Subscribe(name string, s Subscriber) func() {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = subscription{name: name, sub: s}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Publish sends evt to the message bus and to local subscribers. Local
// delivery happens even when the bus rejects the event.
func (h *Hub) Publish(ctx context.Context, evt Event) error {
	if evt.Type == "" {
		return errors.New("event type is required")
	}
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}

	var busErr error
	if h.client != nil {
		payload, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		msg := messaging.Message{
			Key:     []byte(fmt.Sprintf("order-%d", evt.OrderID)),
			Value:   payload,
			Headers: map[string]string{messaging.HeaderEventType: evt.Type},
			Time:    evt.At,
		}
		if err := h.client.Publish(ctx, msg); err != nil {
			busErr = fmt.Errorf("publish %s: %w", evt.Type, err)
		}
	}

	h.Dispatch(ctx, evt)
	return busErr
}

// Dispatch delivers evt to local subscribers only.
func (h *Hub) Dispatch(ctx context.Context, evt Event) {
	h.mu.RLock()
	targets := make([]subscription, 0, len(h.subs))
	for _, s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, t := range targets {
		h.deliver(ctx, t, evt)
	}
}

func (h *Hub) deliver(ctx context.Context, t subscription, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("subscriber panicked",
				zap.String("subscriber", t.name),
				zap.Any("recover", r),
				zap.Int64("order_id", evt.OrderID),
			)
		}
	}()
	t.sub.Notify(ctx, evt)
}

// Decode parses an event received from the bus.
func Decode(raw []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if evt.Type == "" {
		return Event{}, errors.New("decode event: missing type")
	}
	return evt, nil
}
