package port

import "context"

// Handler consumes one published envelope payload. It runs on the broker's
// own delivery goroutine and must not block the publisher.
type Handler func(payload []byte)

// Broker is the pluggable fanout capability that lets several server
// instances behave as one logical chat service. An envelope published for a
// thread reaches every subscribed instance, including the publishing one.
//
// Implementations are chosen once at construction: a local in-process
// variant for single-instance deployments and tests, and a Redis pub/sub
// variant for distributed fanout.
type Broker interface {
	// Publish sends payload on the channel belonging to threadID.
	Publish(ctx context.Context, threadID string, payload []byte) error

	// Subscribe registers h to receive every published envelope until ctx is
	// canceled. Delivery failures inside h must be handled by h itself.
	Subscribe(ctx context.Context, h Handler) error

	Close() error
}
