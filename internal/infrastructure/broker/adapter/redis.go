package adapter

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"chatwire/internal/infrastructure/broker/port"
)

const (
	channelPrefix  = "chat:"
	channelPattern = "chat:*"
)

// RedisBroker implements port.Broker over Redis pub/sub. Envelopes are
// published on "chat:<threadID>" channels and every instance pattern-
// subscribes to "chat:*" so fanout reaches all of them.
type RedisBroker struct {
	client *redis.Client
	log    *logrus.Entry
}

// NewRedisBroker connects to the given Redis URL and verifies it with a ping.
func NewRedisBroker(url string, log *logrus.Entry) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("broker: parse redis url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("broker: redis ping: %w", err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &RedisBroker{client: c, log: log}, nil
}

var _ port.Broker = (*RedisBroker)(nil)

func (b *RedisBroker) Publish(ctx context.Context, threadID string, payload []byte) error {
	if err := b.client.Publish(ctx, channelPrefix+threadID, payload).Err(); err != nil {
		return fmt.Errorf("broker: publish %s%s: %w", channelPrefix, threadID, err)
	}
	return nil
}

// Subscribe pattern-subscribes to every thread channel and pumps messages to
// h on a dedicated goroutine until ctx is canceled. A failure inside one
// delivery never stops the pump.
func (b *RedisBroker) Subscribe(ctx context.Context, h port.Handler) error {
	pubsub := b.client.PSubscribe(ctx, channelPattern)
	// Wait for the subscription confirmation before returning.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("broker: psubscribe %s: %w", channelPattern, err)
	}

	ch := pubsub.Channel()
	go func() {
		defer func() { _ = pubsub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					b.log.Warn("broker: pubsub channel closed")
					return
				}
				b.dispatch(h, msg)
			}
		}
	}()
	return nil
}

func (b *RedisBroker) dispatch(h port.Handler, msg *redis.Message) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithField("channel", msg.Channel).Errorf("broker: handler panic: %v", r)
		}
	}()
	h([]byte(msg.Payload))
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
