package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/drivopay/payments/internal/telemetry"
)

// NoopPublisher drops events. It stands in for kafka or nats when no broker
// is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, subject, key string, _ []byte) error {
	telemetry.Logger.Debug("Event dropped, no broker configured",
		zap.String("subject", subject),
		zap.String("key", key),
	)
	return nil
}
