// Package signature computes and checks the HMAC-SHA256 signatures the
// gateway attaches to checkout callbacks and webhooks.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidSignature = errors.New("invalid signature")
)

// ComputeHMAC returns the lowercase hex HMAC-SHA256 of message under secret.
func ComputeHMAC(secret string, message []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// PaymentMessage is the string signed by checkout: "<orderId>|<paymentId>".
func PaymentMessage(orderID, paymentID string) []byte {
	return []byte(orderID + "|" + paymentID)
}

// Verifier holds the two secrets used by the gateway. The API secret signs
// checkout callbacks and the webhook secret signs webhook bodies.
type Verifier struct {
	apiSecret     string
	webhookSecret string
}

func NewVerifier(apiSecret, webhookSecret string) *Verifier {
	return &Verifier{apiSecret: apiSecret, webhookSecret: webhookSecret}
}

// VerifyPayment checks a checkout signature over orderID|paymentID.
func (v *Verifier) VerifyPayment(orderID, paymentID, signature string) error {
	return verify(v.apiSecret, PaymentMessage(orderID, paymentID), signature)
}

// VerifyWebhook checks a webhook signature over the raw, unparsed body.
func (v *Verifier) VerifyWebhook(body []byte, signature string) error {
	return verify(v.webhookSecret, body, signature)
}

func verify(secret string, message []byte, signature string) error {
	if signature == "" {
		return ErrMissingSignature
	}
	expected := ComputeHMAC(secret, message)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
