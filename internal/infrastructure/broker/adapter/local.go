package adapter

import (
	"context"
	"sync"

	"chatwire/internal/infrastructure/broker/port"
)

// LocalBroker is an in-process port.Broker. A single instance subscribing to
// its own LocalBroker gets plain local delivery; tests share one LocalBroker
// between several engine instances to simulate cross-instance fanout.
type LocalBroker struct {
	mu       sync.RWMutex
	handlers []port.Handler
	closed   bool
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{}
}

var _ port.Broker = (*LocalBroker)(nil)

// Publish delivers payload to every subscribed handler. Delivery is
// synchronous so tests observe effects immediately; handlers are invoked
// outside the broker lock.
func (b *LocalBroker) Publish(ctx context.Context, _ string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	handlers := make([]port.Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(payload)
	}
	return nil
}

func (b *LocalBroker) Subscribe(ctx context.Context, h port.Handler) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return context.Canceled
	}
	b.handlers = append(b.handlers, h)
	return nil
}

func (b *LocalBroker) Close() error {
	b.mu.Lock()
	b.handlers = nil
	b.closed = true
	b.mu.Unlock()
	return nil
}
