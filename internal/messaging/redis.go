package messaging

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/internal/cache"
	"github.com/Additional-Code/hatch/internal/config"
)

// redisClient publishes on a redis pub/sub channel named after the topic.
// Delivery is at-most-once: subscribers that are offline miss messages and
// are expected to catch up by polling. Pub/sub carries no headers or keys,
// so only the payload travels.
type redisClient struct {
	client *goredis.Client
	topic  string
	logger *zap.Logger
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	client := cache.NewRedisClient(cfg.Cache.Redis)
	rc := &redisClient{client: client, topic: cfg.Messaging.Kafka.Topic, logger: logger}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("closing redis messaging client")
			return client.Close()
		},
	})

	return rc, nil
}

func (r *redisClient) Publish(ctx context.Context, msg Message) error {
	return r.client.Publish(ctx, r.topic, msg.Value).Err()
}

func (r *redisClient) Consume(ctx context.Context, handler Handler) error {
	sub := r.client.Subscribe(ctx, r.topic)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			err := handler(ctx, Message{
				Topic: msg.Channel,
				Value: []byte(msg.Payload),
				Time:  time.Now().UTC(),
			})
			if err != nil {
				r.logger.Error("message handler failed", zap.Error(err), zap.String("channel", msg.Channel))
			}
		}
	}
}

func (r *redisClient) Topic() string { return r.topic }
