package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/internal/config"
)

// HeaderEventType names the event carried by a message so consumers can
// route it without decoding the payload.
const HeaderEventType = "event-type"

// Message is a single record on the bus, inbound or outbound.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
	Offset  int64
	Time    time.Time
}

// Handler processes an inbound message.
type Handler func(context.Context, Message) error

// Client is the pluggable messaging abstraction.
type Client interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context, handler Handler) error
	Topic() string
}

// Module wires the messaging client.
var Module = fx.Provide(NewClient)

// noopClient is used when messaging is disabled.
type noopClient struct {
	topic string
}

func (n noopClient) Publish(context.Context, Message) error { return nil }
func (n noopClient) Consume(ctx context.Context, handler Handler) error {
	<-ctx.Done()
	return ctx.Err()
}
func (n noopClient) Topic() string { return n.topic }

// kafkaClient implements the Client via kafka-go.
type kafkaClient struct {
	writer *kafka.Writer
	reader *kafka.Reader
	topic  string
	logger *zap.Logger
}

// Publish writes msg with the caller's trace context attached as headers.
func (k *kafkaClient) Publish(ctx context.Context, msg Message) error {
	headers := make(map[string]string, len(msg.Headers)+2)
	for key, v := range msg.Headers {
		headers[key] = v
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))

	return k.writer.WriteMessages(ctx, toKafka(msg, headers))
}

func (k *kafkaClient) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := k.fetch(ctx)
		if err != nil {
			return err
		}

		in := fromKafka(msg)
		hctx := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(in.Headers))
		if err := deliver(hctx, handlerBackOff(), handler, in); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// The reader has already moved past msg, so it is committed
			// below and not seen again.
			k.logger.Error("message handler failed; skipping", zap.Error(err), zap.Int64("offset", msg.Offset))
		}

		if err := k.reader.CommitMessages(ctx, msg); err != nil {
			k.logger.Warn("commit failed", zap.Error(err))
		}
	}
}

// handlerBackOff bounds how long one message may hold up the partition.
func handlerBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return backoff.WithMaxRetries(b, 3)
}

// deliver runs handler until it succeeds or b gives up.
func deliver(ctx context.Context, b backoff.BackOff, handler Handler, msg Message) error {
	return backoff.Retry(func() error {
		return handler(ctx, msg)
	}, backoff.WithContext(b, ctx))
}

// fetch retries transient broker errors with exponential backoff until ctx ends.
func (k *kafkaClient) fetch(ctx context.Context) (kafka.Message, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	var msg kafka.Message
	err := backoff.RetryNotify(func() error {
		var err error
		msg, err = k.reader.FetchMessage(ctx)
		if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		k.logger.Error("kafka fetch failed", zap.Error(err), zap.Duration("retry_in", wait))
	})
	if err != nil && ctx.Err() != nil {
		return kafka.Message{}, ctx.Err()
	}
	return msg, err
}

func toKafka(msg Message, headers map[string]string) kafka.Message {
	out := kafka.Message{Key: msg.Key, Value: msg.Value, Time: msg.Time}
	if out.Time.IsZero() {
		out.Time = time.Now().UTC()
	}
	for key, v := range headers {
		out.Headers = append(out.Headers, kafka.Header{Key: key, Value: []byte(v)})
	}
	return out
}

func fromKafka(msg kafka.Message) Message {
	wrapped := Message{
		Topic:  msg.Topic,
		Key:    append([]byte(nil), msg.Key...),
		Value:  append([]byte(nil), msg.Value...),
		Offset: msg.Offset,
		Time:   msg.Time,
	}
	if len(msg.Headers) > 0 {
		wrapped.Headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			wrapped.Headers[h.Key] = string(h.Value)
		}
	}
	return wrapped
}

func (k *kafkaClient) Topic() string { return k.topic }

// NewClient builds a messaging client based on configuration.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	if !cfg.Messaging.Enabled || cfg.Messaging.Driver == "noop" {
		logger.Info("messaging disabled; using noop client")

		return noopClient{topic: cfg.Messaging.Kafka.Topic}, nil
	}

	switch cfg.Messaging.Driver {
	case "kafka":
		return newKafkaClient(lc, cfg, logger)
	case "redis":
		return newRedisClient(lc, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
}

func newKafkaClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	topic := cfg.Messaging.Kafka.Topic

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Messaging.Kafka.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		Logger:       kafkaLogger{logger: logger},
		ErrorLogger:  kafkaLogger{logger: logger},
	}

	readerConfig := kafka.ReaderConfig{
		Brokers:        cfg.Messaging.Kafka.Brokers,
		GroupID:        cfg.Messaging.ConsumerGroup,
		Topic:          topic,
		MinBytes:       cfg.Messaging.Kafka.MinBytes,
		MaxBytes:       cfg.Messaging.Kafka.MaxBytes,
		CommitInterval: cfg.Messaging.Kafka.CommitInterval,
		StartOffset:    startOffset(cfg.Messaging.Kafka.StartOffset),
		Dialer: &kafka.Dialer{
			Timeout:  cfg.Messaging.Kafka.ConnectTimeout,
			ClientID: cfg.Messaging.Kafka.ClientID,
		},
	}

	reader := kafka.NewReader(readerConfig)

	client := &kafkaClient{writer: writer, reader: reader, topic: topic, logger: logger}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("closing kafka client")

			if err := writer.Close(); err != nil {
				return err
			}
			return reader.Close()
		},
	})

	return client, nil
}

// Groups reading from "last" skip the backlog, which suits consumers that
// only use events as refresh prompts.
func startOffset(name string) int64 {
	if name == "last" {
		return kafka.LastOffset
	}
	return kafka.FirstOffset
}

type kafkaLogger struct {
	logger *zap.Logger
}

func (k kafkaLogger) Printf(msg string, args ...interface{}) {
	k.logger.Sugar().Debugf(msg, args...)
}
