package events

import (
	"context"

	"github.com/nats-io/nats.go"
)

// NatsPublisher fans webhook entities out on core NATS subjects. The key is
// carried as a message header.
type NatsPublisher struct {
	nc *nats.Conn
}

func NewNatsPublisher(nc *nats.Conn) *NatsPublisher {
	return &NatsPublisher{nc: nc}
}

func (p *NatsPublisher) Publish(ctx context.Context, subject, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := nats.NewMsg(subject)
	msg.Data = payload
	if key != "" {
		msg.Header.Set("Event-Id", key)
	}
	return p.nc.PublishMsg(msg)
}
