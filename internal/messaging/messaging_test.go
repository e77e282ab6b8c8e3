package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/internal/config"
)

func TestToKafka_CopiesHeadersAndStampsTime(t *testing.T) {
	msg := Message{Key: []byte("order-7"), Value: []byte(`{}`)}

	out := toKafka(msg, map[string]string{HeaderEventType: "order_update"})

	assert.Equal(t, []byte("order-7"), out.Key)
	assert.False(t, out.Time.IsZero())
	require.Len(t, out.Headers, 1)
	assert.Equal(t, kafka.Header{Key: HeaderEventType, Value: []byte("order_update")}, out.Headers[0])
}

func TestFromKafka(t *testing.T) {
	at := time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)
	in := kafka.Message{
		Topic:   "orders",
		Key:     []byte("order-7"),
		Value:   []byte(`{"type":"order_update","orderId":7}`),
		Offset:  12,
		Time:    at,
		Headers: []kafka.Header{{Key: HeaderEventType, Value: []byte("order_update")}},
	}

	msg := fromKafka(in)
	in.Value[0] = 'X'

	assert.Equal(t, "orders", msg.Topic)
	assert.Equal(t, int64(12), msg.Offset)
	assert.Equal(t, at, msg.Time)
	assert.Equal(t, byte('{'), msg.Value[0])
	assert.Equal(t, "order_update", msg.Headers[HeaderEventType])
}

func TestTraceContextSurvivesHeaders(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	prop := propagation.TraceContext{}
	headers := map[string]string{}
	prop.Inject(ctx, propagation.MapCarrier(headers))
	wire := toKafka(Message{Value: []byte(`{}`)}, headers)

	got := prop.Extract(context.Background(), propagation.MapCarrier(fromKafka(wire).Headers))
	assert.Equal(t, span.SpanContext().TraceID(), trace.SpanContextFromContext(got).TraceID())
}

func TestStartOffset(t *testing.T) {
	assert.Equal(t, kafka.LastOffset, startOffset("last"))
	assert.Equal(t, kafka.FirstOffset, startOffset("first"))
	assert.Equal(t, kafka.FirstOffset, startOffset(""))
}

func TestNewClient_Disabled(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	cfg := config.Config{Messaging: config.Messaging{Driver: "kafka", Kafka: config.Kafka{Topic: "orders"}}}

	client, err := NewClient(lc, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "orders", client.Topic())
	assert.NoError(t, client.Publish(context.Background(), Message{Value: []byte(`{}`)}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, client.Consume(ctx, nil), context.Canceled)
}

func TestNewClient_UnknownDriver(t *testing.T) {
	cfg := config.Config{Messaging: config.Messaging{Enabled: true, Driver: "nats"}}

	_, err := NewClient(fxtest.NewLifecycle(t), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestDeliver_RetriesHandler(t *testing.T) {
	calls := 0
	err := deliver(context.Background(), &backoff.ZeroBackOff{}, func(context.Context, Message) error {
		calls++
		if calls < 3 {
			return errors.New("cache unavailable")
		}
		return nil
	}, Message{Value: []byte(`{}`)})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDeliver_GivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	err := deliver(context.Background(), backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3), func(context.Context, Message) error {
		calls++
		return errors.New("cache unavailable")
	}, Message{})

	assert.Error(t, err)
	assert.Equal(t, 4, calls)
}
