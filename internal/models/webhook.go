package models

import "encoding/json"

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventQRCodeCredited  = "qr_code.credited"
	EventQRCodeClosed    = "qr_code.closed"
	EventPayoutProcessed = "payout.processed"
	EventPayoutFailed    = "payout.failed"
	EventPayoutReversed  = "payout.reversed"
)

// WebhookEnvelope is the parsed form of a verified webhook body. Payload maps
// an entity name ("payment", "qr_code", "payout") to its wrapper.
type WebhookEnvelope struct {
	Event     string                   `json:"event"`
	AccountID string                   `json:"account_id"`
	CreatedAt int64                    `json:"created_at"`
	Payload   map[string]WebhookEntity `json:"payload"`
	Raw       []byte                   `json:"-"`
	EventID   string                   `json:"-"`
}

type WebhookEntity struct {
	Entity json.RawMessage `json:"entity"`
}

// Entity returns the raw JSON of payload.<name>.entity, or nil.
func (e *WebhookEnvelope) Entity(name string) json.RawMessage {
	if w, ok := e.Payload[name]; ok {
		return w.Entity
	}
	return nil
}
