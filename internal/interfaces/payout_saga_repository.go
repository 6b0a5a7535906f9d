package interfaces

import (
	"context"

	"github.com/drivopay/payments/internal/models"
)

// PayoutSagaRepository defines the contract for payout saga data access
type PayoutSagaRepository interface {
	Create(ctx context.Context, saga *models.PayoutSaga) error
	GetBySagaID(ctx context.Context, sagaID string) (*models.PayoutSaga, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.PayoutSaga, error)
	// Transition persists saga only if its stored state is still from.
	Transition(ctx context.Context, saga *models.PayoutSaga, from models.PayoutState) error
}
