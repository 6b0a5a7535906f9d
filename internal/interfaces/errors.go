package interfaces

import "errors"

var (
	ErrSagaNotFound            = errors.New("payout saga not found")
	ErrInvalidTransition       = errors.New("invalid payout saga state transition")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
)
