package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/hatch/internal/messaging"
	"github.com/Additional-Code/hatch/internal/notify"
)

type recordingClient struct {
	mu      sync.Mutex
	keys    []string
	vals    [][]byte
	headers []map[string]string
	err     error
}

func (c *recordingClient) Publish(_ context.Context, msg messaging.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, string(msg.Key))
	c.vals = append(c.vals, msg.Value)
	c.headers = append(c.headers, msg.Headers)
	return c.err
}

func (c *recordingClient) Consume(ctx context.Context, _ messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (c *recordingClient) Topic() string { return "orders" }

func TestHub_PublishForwardsAndFansOut(t *testing.T) {
	t.Parallel()

	client := &recordingClient{}
	hub := notify.NewHub(client, nil)

	var got []notify.Event
	hub.Subscribe("kitchen", notify.SubscriberFunc(func(_ context.Context, evt notify.Event) {
		got = append(got, evt)
	}))

	require.NoError(t, hub.Publish(context.Background(), notify.OrderUpdate(42)))

	require.Len(t, got, 1)
	assert.Equal(t, notify.TypeOrderUpdate, got[0].Type)
	assert.Equal(t, int64(42), got[0].OrderID)

	require.Len(t, client.vals, 1)
	assert.Equal(t, "order-42", client.keys[0])
	assert.Equal(t, "order_update", client.headers[0][messaging.HeaderEventType])

	var wire map[string]any
	require.NoError(t, json.Unmarshal(client.vals[0], &wire))
	assert.Equal(t, "order_update", wire["type"])
	assert.EqualValues(t, 42, wire["orderId"])
}

func TestHub_LocalDeliverySurvivesBusFailure(t *testing.T) {
	t.Parallel()

	client := &recordingClient{err: errors.New("broker down")}
	hub := notify.NewHub(client, nil)

	delivered := 0
	hub.Subscribe("till", notify.SubscriberFunc(func(context.Context, notify.Event) { delivered++ }))

	err := hub.Publish(context.Background(), notify.OrderUpdate(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Equal(t, 1, delivered)
}

func TestHub_UnsubscribeAndPanics(t *testing.T) {
	t.Parallel()

	hub := notify.NewHub(nil, nil)

	calls := 0
	unsubscribe := hub.Subscribe("driver", notify.SubscriberFunc(func(context.Context, notify.Event) { calls++ }))
	hub.Subscribe("broken", notify.SubscriberFunc(func(context.Context, notify.Event) { panic("boom") }))

	hub.Dispatch(context.Background(), notify.OrderUpdate(1))
	unsubscribe()
	hub.Dispatch(context.Background(), notify.OrderUpdate(2))

	assert.Equal(t, 1, calls)
}

func TestHub_PublishRequiresType(t *testing.T) {
	t.Parallel()

	hub := notify.NewHub(nil, nil)
	assert.Error(t, hub.Publish(context.Background(), notify.Event{OrderID: 1}))
}

func TestDecode(t *testing.T) {
	t.Parallel()

	evt, err := notify.Decode([]byte(`{"type":"order_update","orderId":9}`))
	require.NoError(t, err)
	assert.Equal(t, int64(9), evt.OrderID)

	_, err = notify.Decode([]byte(`{"orderId":9}`))
	assert.Error(t, err)

	_, err = notify.Decode([]byte(`not json`))
	assert.Error(t, err)
}
