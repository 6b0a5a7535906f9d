package repository

import (
	"context"
	"sync"
	"time"

	"github.com/drivopay/payments/internal/interfaces"
	"github.com/drivopay/payments/internal/models"
)

// MemoryPayoutSagaRepository keeps sagas in process memory. It is used when
// no DATABASE_URL is configured; state is lost on restart.
type MemoryPayoutSagaRepository struct {
	mu    sync.Mutex
	sagas map[string]models.PayoutSaga
	keys  map[string]string
}

func NewMemoryPayoutSagaRepository() *MemoryPayoutSagaRepository {
	return &MemoryPayoutSagaRepository{
		sagas: make(map[string]models.PayoutSaga),
		keys:  make(map[string]string),
	}
}

func (r *MemoryPayoutSagaRepository) Create(_ context.Context, saga *models.PayoutSaga) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if saga.IdempotencyKey != "" {
		if _, ok := r.keys[saga.IdempotencyKey]; ok {
			return interfaces.ErrDuplicateIdempotencyKey
		}
		r.keys[saga.IdempotencyKey] = saga.SagaID
	}
	now := time.Now()
	saga.CreatedAt, saga.UpdatedAt = now, now
	r.sagas[saga.SagaID] = *saga
	return nil
}

func (r *MemoryPayoutSagaRepository) Transition(_ context.Context, saga *models.PayoutSaga, from models.PayoutState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.sagas[saga.SagaID]
	if !ok || stored.State != from {
		return interfaces.ErrInvalidTransition
	}
	next := *saga
	next.PreviousState = from
	next.IdempotencyKey = stored.IdempotencyKey
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = time.Now()
	r.sagas[saga.SagaID] = next
	return nil
}

func (r *MemoryPayoutSagaRepository) GetBySagaID(_ context.Context, sagaID string) (*models.PayoutSaga, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	saga, ok := r.sagas[sagaID]
	if !ok {
		return nil, interfaces.ErrSagaNotFound
	}
	return &saga, nil
}

func (r *MemoryPayoutSagaRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.PayoutSaga, error) {
	r.mu.Lock()
	sagaID, ok := r.keys[key]
	r.mu.Unlock()
	if !ok {
		return nil, interfaces.ErrSagaNotFound
	}
	return r.GetBySagaID(ctx, sagaID)
}
