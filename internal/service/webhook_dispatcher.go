package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/drivopay/payments/internal/interfaces"
	"github.com/drivopay/payments/internal/models"
	"github.com/drivopay/payments/internal/signature"
	"github.com/drivopay/payments/internal/telemetry"
)

// WebhookHandler reacts to one verified webhook event.
type WebhookHandler func(ctx context.Context, envelope *models.WebhookEnvelope) error

type WebhookConfig struct {
	SubjectPrefix string
	DedupTTL      time.Duration
}

// WebhookDispatcher authenticates gateway webhooks and routes them by event
// name. Each event id is dispatched at most once per DedupTTL.
type WebhookDispatcher struct {
	verifier  *signature.Verifier
	events    interfaces.EventStore
	publisher interfaces.EventPublisher
	cfg       WebhookConfig
	handlers  map[string]WebhookHandler
}

func NewWebhookDispatcher(
	verifier *signature.Verifier,
	events interfaces.EventStore,
	publisher interfaces.EventPublisher,
	cfg WebhookConfig,
) *WebhookDispatcher {
	d := &WebhookDispatcher{
		verifier:  verifier,
		events:    events,
		publisher: publisher,
		cfg:       cfg,
		handlers:  make(map[string]WebhookHandler),
	}

	d.handlers[models.EventPaymentCaptured] = d.forward("payment", "Payment captured")
	d.handlers[models.EventPaymentFailed] = d.forward("payment", "Payment failed")
	d.handlers[models.EventQRCodeCredited] = d.forward("qr_code", "QR code payment received")
	d.handlers[models.EventQRCodeClosed] = d.forward("qr_code", "QR code closed")
	d.handlers[models.EventPayoutProcessed] = d.forward("payout", "Payout processed")
	d.handlers[models.EventPayoutFailed] = d.forward("payout", "Payout failed")
	d.handlers[models.EventPayoutReversed] = d.forward("payout", "Payout reversed")
	return d
}

// Handle replaces the handler for event.
func (d *WebhookDispatcher) Handle(event string, handler WebhookHandler) {
	d.handlers[event] = handler
}

// Dispatch verifies body against sig and runs the matching handler. eventID
// may be empty, in which case the body hash identifies the delivery.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, body []byte, sig, eventID string) error {
	if err := d.verifier.VerifyWebhook(body, sig); err != nil {
		if errors.Is(err, signature.ErrMissingSignature) {
			telemetry.WebhookEvents.WithLabelValues("", "missing_signature").Inc()
			return newError(KindMissingSignature, msgMissingSignature, err)
		}
		telemetry.Logger.Warn("Invalid webhook signature", zap.Int("body_size", len(body)))
		telemetry.WebhookEvents.WithLabelValues("", "invalid_signature").Inc()
		return newError(KindInvalidSignature, msgInvalidSignature, err)
	}

	var envelope models.WebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		telemetry.Logger.Error("Webhook error", zap.Error(err))
		return newError(KindUnknownError, msgWebhookFailed, err)
	}
	envelope.Raw = body
	envelope.EventID = eventID
	if envelope.EventID == "" {
		sum := sha256.Sum256(body)
		envelope.EventID = hex.EncodeToString(sum[:])
	}

	fresh, err := d.events.MarkProcessed(ctx, envelope.EventID, d.cfg.DedupTTL)
	if err != nil {
		telemetry.Logger.Warn("Webhook dedup store unavailable, dispatching anyway",
			zap.String("event_id", envelope.EventID),
			zap.Error(err),
		)
	} else if !fresh {
		telemetry.Logger.Info("Duplicate webhook ignored",
			zap.String("event", envelope.Event),
			zap.String("event_id", envelope.EventID),
		)
		telemetry.WebhookEvents.WithLabelValues(envelope.Event, "duplicate").Inc()
		return nil
	}

	handler, ok := d.handlers[envelope.Event]
	if !ok {
		telemetry.Logger.Info("Unhandled event", zap.String("event", envelope.Event))
		telemetry.WebhookEvents.WithLabelValues("unhandled", "ignored").Inc()
		return nil
	}

	if err := handler(ctx, &envelope); err != nil {
		telemetry.Logger.Error("Webhook error",
			zap.String("event", envelope.Event),
			zap.String("event_id", envelope.EventID),
			zap.Error(err),
		)
		telemetry.WebhookEvents.WithLabelValues(envelope.Event, "error").Inc()
		if err := d.events.Forget(context.WithoutCancel(ctx), envelope.EventID); err != nil {
			telemetry.Logger.Warn("Failed to release webhook event id",
				zap.String("event_id", envelope.EventID),
				zap.Error(err),
			)
		}
		return newError(KindUnknownError, msgWebhookFailed, err)
	}

	telemetry.WebhookEvents.WithLabelValues(envelope.Event, "processed").Inc()
	return nil
}

type webhookEntity struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

// forward logs payload.<entity>.entity under message and publishes it to
// <prefix>.<event>. Publish failures are logged only.
func (d *WebhookDispatcher) forward(entity, message string) WebhookHandler {
	return func(ctx context.Context, envelope *models.WebhookEnvelope) error {
		raw := envelope.Entity(entity)

		var fields webhookEntity
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &fields)
		}
		telemetry.Logger.Info(message,
			zap.String("event", envelope.Event),
			zap.String("event_id", envelope.EventID),
			zap.String("entity_id", fields.ID),
			zap.Int64("amount", fields.Amount),
			zap.String("status", fields.Status),
		)

		subject := d.cfg.SubjectPrefix + "." + envelope.Event
		if err := d.publisher.Publish(ctx, subject, envelope.EventID, raw); err != nil {
			telemetry.Logger.Warn("Failed to publish webhook event",
				zap.String("subject", subject),
				zap.Error(err),
			)
		}
		return nil
	}
}
