package interfaces

import (
	"context"
	"time"
)

// Locker grants short-lived exclusive ownership of a key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// EventStore remembers webhook event ids that were already dispatched.
type EventStore interface {
	// MarkProcessed records id and reports whether it was new.
	MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error)
	// Forget drops id so a redelivery is dispatched again.
	Forget(ctx context.Context, id string) error
}

// EventPublisher fans events out to a broker. subject is a kafka topic or a
// nats subject depending on the implementation.
type EventPublisher interface {
	Publish(ctx context.Context, subject, key string, payload []byte) error
}
