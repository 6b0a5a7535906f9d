package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/drivopay/payments/internal/interfaces"
	"github.com/drivopay/payments/internal/models"
	"github.com/drivopay/payments/internal/telemetry"
)

const (
	payoutLockTTL         = 30 * time.Second
	payoutLockPrefix      = "payout_lock:"
	payoutCurrency        = "INR"
	defaultPurpose        = "payout"
	defaultNarration      = "Withdrawal from DrivoPay"
	contactType           = "vendor"
	msgPayoutFailed       = "Failed to create payout"
	defaultPublishTimeout = 2 * time.Second
)

type PayoutConfig struct {
	// SourceAccount is the RazorpayX account debited by every payout.
	SourceAccount string
	StateTopic    string
	// PublishTimeout bounds each state event publish. Zero means two seconds.
	PublishTimeout time.Duration
}

// PayoutService runs the contact -> fund account -> payout chain as a
// persisted saga.
type PayoutService struct {
	gateway   interfaces.Gateway
	repo      interfaces.PayoutSagaRepository
	locker    interfaces.Locker
	publisher interfaces.EventPublisher
	cfg       PayoutConfig
}

func NewPayoutService(
	gateway interfaces.Gateway,
	repo interfaces.PayoutSagaRepository,
	locker interfaces.Locker,
	publisher interfaces.EventPublisher,
	cfg PayoutConfig,
) *PayoutService {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	return &PayoutService{
		gateway:   gateway,
		repo:      repo,
		locker:    locker,
		publisher: publisher,
		cfg:       cfg,
	}
}

// CreatePayout pays req.Amount rupees to the given bank account. With an
// idempotency key a completed payout is replayed, and a failed or
// interrupted one resumes from the step it stopped at. A key reused for a
// different request is rejected before any gateway call.
func (s *PayoutService) CreatePayout(ctx context.Context, req models.PayoutRequest) (*models.PayoutResponse, error) {
	minor, ok := ToMinorUnits(req.Amount)
	if !ok {
		return nil, newError(KindInvalidAmount, msgInvalidAmount, nil)
	}
	if req.AccountNumber == "" || req.IFSC == "" || req.Name == "" {
		return nil, newError(KindMissingBankDetails, msgMissingBankDetails, nil)
	}
	if req.Mode == "" {
		req.Mode = models.ModeIMPS
	}
	if !req.Mode.Valid() {
		return nil, newError(KindInvalidRequest, "Invalid transfer mode", nil)
	}
	if req.Purpose == "" {
		req.Purpose = defaultPurpose
	}
	if req.Narration == "" {
		req.Narration = defaultNarration
	}

	if req.IdempotencyKey == "" {
		saga, err := s.newSaga(ctx, req, minor)
		if err != nil {
			return nil, err
		}
		return s.run(ctx, saga)
	}

	lockKey := payoutLockPrefix + req.IdempotencyKey
	acquired, err := s.locker.Acquire(ctx, lockKey, payoutLockTTL)
	if err != nil {
		telemetry.Logger.Error("Failed to acquire payout lock",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Error(err),
		)
		return nil, newError(KindUnknownError, msgPayoutFailed, err)
	}
	if !acquired {
		return nil, newError(KindPayoutInProgress, msgPayoutInProgress, nil)
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), lockKey); err != nil {
			telemetry.Logger.Warn("Failed to release payout lock",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Error(err),
			)
		}
	}()

	saga, err := s.repo.GetByIdempotencyKey(ctx, req.IdempotencyKey)
	switch {
	case errors.Is(err, interfaces.ErrSagaNotFound):
		saga, err = s.newSaga(ctx, req, minor)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, newError(KindUnknownError, msgPayoutFailed, err)
	case !saga.SameRequest(req, minor):
		telemetry.Logger.Warn("Idempotency key reused with a different payout",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.String("saga_id", saga.SagaID),
		)
		return nil, newError(KindIdempotencyReused, msgIdempotencyReused, nil)
	case saga.State == models.StateCompleted:
		telemetry.Logger.Info("Replaying completed payout",
			zap.String("saga_id", saga.SagaID),
			zap.String("payout_id", saga.PayoutID),
		)
		return saga.Response(), nil
	case saga.State == models.StateFailed:
		if err := s.resume(ctx, saga); err != nil {
			return nil, err
		}
	default:
		// Holding the lock means no live request owns this saga, so a pending
		// state was left behind by one that died or lost its final write.
		telemetry.Logger.Info("Resuming interrupted payout saga",
			zap.String("saga_id", saga.SagaID),
			zap.String("state", string(saga.State)),
		)
	}

	return s.run(ctx, saga)
}

func (s *PayoutService) newSaga(ctx context.Context, req models.PayoutRequest, minor int64) (*models.PayoutSaga, error) {
	saga := &models.PayoutSaga{
		SagaID:           uuid.NewString(),
		IdempotencyKey:   req.IdempotencyKey,
		State:            models.StatePendingContact,
		AmountMinor:      minor,
		Mode:             req.Mode,
		BeneficiaryName:  req.Name,
		AccountNumber:    req.AccountNumber,
		IFSC:             req.IFSC,
		Purpose:          req.Purpose,
		Narration:        req.Narration,
		ContactReference: uniqueReference(contactPrefix),
		PayoutReference:  uniqueReference(payoutPrefix),
	}
	if err := s.repo.Create(ctx, saga); err != nil {
		if errors.Is(err, interfaces.ErrDuplicateIdempotencyKey) {
			return nil, newError(KindPayoutInProgress, msgPayoutInProgress, err)
		}
		return nil, newError(KindUnknownError, msgPayoutFailed, err)
	}

	telemetry.Logger.Info("Payout saga started",
		zap.String("saga_id", saga.SagaID),
		zap.Int64("amount", minor),
	)
	s.publish(ctx, saga)
	return saga, nil
}

// resume moves a failed saga back to the pending state of its failed step.
func (s *PayoutService) resume(ctx context.Context, saga *models.PayoutSaga) error {
	step := saga.FailedStep
	saga.FailedStep = ""
	saga.LastError = ""
	if err := s.transition(ctx, saga, step.PendingState()); err != nil {
		return newError(KindUnknownError, msgPayoutFailed, err)
	}
	telemetry.Logger.Info("Resuming payout saga",
		zap.String("saga_id", saga.SagaID),
		zap.String("step", string(step)),
	)
	return nil
}

// run drives saga from its current state to COMPLETED. Every step reads the
// beneficiary from the saga, never from the request that resumed it.
func (s *PayoutService) run(ctx context.Context, saga *models.PayoutSaga) (*models.PayoutResponse, error) {
	for {
		switch saga.State {
		case models.StatePendingContact:
			if err := ctx.Err(); err != nil {
				return nil, s.fail(ctx, saga, models.StepContact, err)
			}
			contact, err := s.gateway.CreateContact(ctx, models.ContactParams{
				Name:        saga.BeneficiaryName,
				Type:        contactType,
				ReferenceID: saga.ContactReference,
			})
			if err != nil {
				return nil, s.fail(ctx, saga, models.StepContact, err)
			}
			saga.ContactID = contact.ID
			if err := s.transition(ctx, saga, models.StatePendingFundAccount); err != nil {
				return nil, newError(KindUnknownError, msgPayoutFailed, err)
			}

		case models.StatePendingFundAccount:
			if err := ctx.Err(); err != nil {
				return nil, s.fail(ctx, saga, models.StepFundAccount, err)
			}
			fundAccount, err := s.gateway.CreateFundAccount(ctx, models.FundAccountParams{
				ContactID:     saga.ContactID,
				Name:          saga.BeneficiaryName,
				IFSC:          saga.IFSC,
				AccountNumber: saga.AccountNumber,
			})
			if err != nil {
				return nil, s.fail(ctx, saga, models.StepFundAccount, err)
			}
			saga.FundAccountID = fundAccount.ID
			if err := s.transition(ctx, saga, models.StatePendingPayout); err != nil {
				return nil, newError(KindUnknownError, msgPayoutFailed, err)
			}

		case models.StatePendingPayout:
			if err := ctx.Err(); err != nil {
				return nil, s.fail(ctx, saga, models.StepPayout, err)
			}
			payout, err := s.gateway.CreatePayout(ctx, s.payoutParams(saga))
			if err != nil {
				return nil, s.fail(ctx, saga, models.StepPayout, err)
			}
			saga.PayoutID = payout.ID
			saga.PayoutStatus = payout.Status
			saga.UTR = payout.UTR
			if err := s.transition(ctx, saga, models.StateCompleted); err != nil {
				telemetry.Logger.Error("Payout created but saga not completed",
					zap.String("saga_id", saga.SagaID),
					zap.String("payout_id", saga.PayoutID),
					zap.Error(err),
				)
				return nil, newError(KindUnknownError, msgPayoutFailed, err)
			}

		case models.StateCompleted:
			telemetry.Logger.Info("Payout created",
				zap.String("saga_id", saga.SagaID),
				zap.String("payout_id", saga.PayoutID),
				zap.String("status", saga.PayoutStatus),
			)
			return saga.Response(), nil

		default:
			return nil, newError(KindUnknownError, msgPayoutFailed, interfaces.ErrInvalidTransition)
		}
	}
}

// payoutParams keys the gateway call on the saga ID, so a retried payout
// step cannot pay twice.
func (s *PayoutService) payoutParams(saga *models.PayoutSaga) models.PayoutParams {
	return models.PayoutParams{
		SourceAccount:     s.cfg.SourceAccount,
		FundAccountID:     saga.FundAccountID,
		AmountMinor:       saga.AmountMinor,
		Currency:          payoutCurrency,
		Mode:              saga.Mode,
		Purpose:           saga.Purpose,
		QueueIfLowBalance: true,
		ReferenceID:       saga.PayoutReference,
		Narration:         saga.Narration,
		Notes:             map[string]string{"created_at": now().UTC().Format(time.RFC3339)},
		IdempotencyKey:    saga.SagaID,
	}
}

// fail records step as failed and returns the error for the caller. The
// write outlives a cancelled request.
func (s *PayoutService) fail(ctx context.Context, saga *models.PayoutSaga, step models.PayoutStep, cause error) error {
	saga.FailedStep = step
	saga.LastError = cause.Error()
	if err := s.transition(context.WithoutCancel(ctx), saga, models.StateFailed); err != nil {
		telemetry.Logger.Error("Failed to record payout failure",
			zap.String("saga_id", saga.SagaID),
			zap.Error(err),
		)
	}

	telemetry.Logger.Error("Payout step failed",
		zap.String("saga_id", saga.SagaID),
		zap.String("step", string(step)),
		zap.Error(cause),
	)

	if ctx.Err() != nil {
		return newError(KindUnknownError, "Payout request cancelled", cause)
	}
	return gatewayError(cause, msgPayoutFailed)
}

func (s *PayoutService) transition(ctx context.Context, saga *models.PayoutSaga, to models.PayoutState) error {
	from, previous := saga.State, saga.PreviousState
	saga.PreviousState = from
	saga.State = to

	if err := s.repo.Transition(ctx, saga, from); err != nil {
		saga.State, saga.PreviousState = from, previous
		return err
	}

	telemetry.PayoutTransitions.WithLabelValues(string(to)).Inc()
	telemetry.Logger.Info("Payout saga transition",
		zap.String("saga_id", saga.SagaID),
		zap.String("from_state", string(from)),
		zap.String("to_state", string(to)),
	)

	s.publish(ctx, saga)
	return nil
}

func (s *PayoutService) publish(ctx context.Context, saga *models.PayoutSaga) {
	event := models.PayoutStateChangedEvent{
		SagaID:        saga.SagaID,
		State:         saga.State,
		PreviousState: saga.PreviousState,
		FailedStep:    saga.FailedStep,
		PayoutID:      saga.PayoutID,
		AmountMinor:   saga.AmountMinor,
		Timestamp:     now(),
	}
	eventJSON, _ := json.Marshal(event)

	// A slow broker must not hold the request or the payout lock.
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PublishTimeout)
	defer cancel()

	if err := s.publisher.Publish(publishCtx, s.cfg.StateTopic, saga.SagaID, eventJSON); err != nil {
		telemetry.Logger.Warn("Failed to publish payout state event",
			zap.String("saga_id", saga.SagaID),
			zap.Error(err),
		)
	}
}

// GetSaga returns the persisted saga for sagaID.
func (s *PayoutService) GetSaga(ctx context.Context, sagaID string) (*models.PayoutSaga, error) {
	return s.repo.GetBySagaID(ctx, sagaID)
}
