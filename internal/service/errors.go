package service

import (
	"errors"
	"net/http"

	"github.com/drivopay/payments/internal/gateway"
)

type ErrorKind string

const (
	KindInvalidRequest     ErrorKind = "InvalidRequest"
	KindInvalidAmount      ErrorKind = "InvalidAmount"
	KindMissingBankDetails ErrorKind = "MissingBankDetails"
	KindMissingParameters  ErrorKind = "MissingParameters"
	KindMissingSignature   ErrorKind = "MissingSignature"
	KindInvalidSignature   ErrorKind = "InvalidSignature"
	KindPayoutInProgress   ErrorKind = "PayoutInProgress"
	KindIdempotencyReused  ErrorKind = "IdempotencyKeyReused"
	KindGatewayError       ErrorKind = "GatewayError"
	KindUnknownError       ErrorKind = "UnknownError"
)

const (
	msgInvalidAmount           = "Invalid amount"
	msgMissingBankDetails      = "Missing required bank details"
	msgMissingParameters       = "Missing required parameters"
	msgMissingSignature        = "Missing signature"
	msgInvalidSignature        = "Invalid signature"
	msgInvalidPaymentSignature = "Invalid payment signature"
	msgPayoutInProgress        = "Payout with this idempotency key is already in progress"
	msgIdempotencyReused       = "Idempotency key was already used for a different payout"
	msgWebhookFailed           = "Webhook processing failed"
)

// Error is the failure half of every service result. Message is safe to
// return to clients.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the kind to the response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindPayoutInProgress:
		return http.StatusConflict
	case KindIdempotencyReused:
		return http.StatusUnprocessableEntity
	case KindGatewayError, KindUnknownError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// AsError unwraps err to a *Error, classifying anything else as unknown.
func AsError(err error) *Error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return newError(KindUnknownError, err.Error(), err)
}

// gatewayError builds a GatewayError whose message is the gateway's
// description, else the error text, else fallback.
func gatewayError(err error, fallback string) *Error {
	message := fallback
	var apiErr *gateway.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Description != "":
		message = apiErr.Description
	case err != nil && err.Error() != "":
		message = err.Error()
	}
	return newError(KindGatewayError, message, err)
}
