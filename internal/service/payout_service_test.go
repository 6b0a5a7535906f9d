package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/drivopay/payments/internal/gateway"
	"github.com/drivopay/payments/internal/interfaces"
	"github.com/drivopay/payments/internal/mocks"
	"github.com/drivopay/payments/internal/models"
	"github.com/drivopay/payments/internal/repository"
	"github.com/drivopay/payments/internal/service"
)

const stateTopic = "payout.state.changed"

var contactRefPattern = regexp.MustCompile(`^contact_\d+_[0-9a-f]{8}$`)

type payoutFixture struct {
	gw        *mocks.Gateway
	repo      *repository.MemoryPayoutSagaRepository
	publisher *mocks.Publisher
	svc       *service.PayoutService
}

func newPayoutFixture(locker interfaces.Locker) *payoutFixture {
	f := &payoutFixture{
		gw:        new(mocks.Gateway),
		repo:      repository.NewMemoryPayoutSagaRepository(),
		publisher: &mocks.Publisher{},
	}
	if locker == nil {
		locker = repository.NewMemoryLocker()
	}
	f.svc = service.NewPayoutService(f.gw, f.repo, locker, f.publisher, service.PayoutConfig{
		SourceAccount: "2323230000000000",
		StateTopic:    stateTopic,
	})
	return f
}

func validPayout() models.PayoutRequest {
	return models.PayoutRequest{
		Amount:        decimal.RequireFromString("1500.75"),
		AccountNumber: "50100012345678",
		IFSC:          "HDFC0001234",
		Name:          "Ravi Kumar",
	}
}

func (f *payoutFixture) lastEvent(t *testing.T) models.PayoutStateChangedEvent {
	t.Helper()
	require.NotEmpty(t, f.publisher.Messages)
	var event models.PayoutStateChangedEvent
	require.NoError(t, json.Unmarshal(f.publisher.Messages[len(f.publisher.Messages)-1].Payload, &event))
	return event
}

func TestCreatePayout_FullChainInOrder(t *testing.T) {
	f := newPayoutFixture(nil)
	var payoutParams models.PayoutParams

	mock.InOrder(
		f.gw.On("CreateContact", mock.Anything, mock.MatchedBy(func(p models.ContactParams) bool {
			return p.Name == "Ravi Kumar" && p.Type == "vendor" && contactRefPattern.MatchString(p.ReferenceID)
		})).Return(&models.Contact{ID: "cont_1"}, nil).Once(),
		f.gw.On("CreateFundAccount", mock.Anything, models.FundAccountParams{
			ContactID: "cont_1", Name: "Ravi Kumar", IFSC: "HDFC0001234", AccountNumber: "50100012345678",
		}).Return(&models.FundAccount{ID: "fa_1"}, nil).Once(),
		f.gw.On("CreatePayout", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { payoutParams = args.Get(1).(models.PayoutParams) }).
			Return(&models.Payout{ID: "pout_1", Status: "processing"}, nil).Once(),
	)

	resp, err := f.svc.CreatePayout(context.Background(), validPayout())
	require.NoError(t, err)

	assert.Equal(t, &models.PayoutResponse{PayoutID: "pout_1", Status: "processing", FundAccountID: "fa_1"}, resp)
	f.gw.AssertExpectations(t)

	assert.Equal(t, "2323230000000000", payoutParams.SourceAccount)
	assert.Equal(t, "fa_1", payoutParams.FundAccountID)
	assert.Equal(t, int64(150075), payoutParams.AmountMinor)
	assert.Equal(t, "INR", payoutParams.Currency)
	assert.Equal(t, models.ModeIMPS, payoutParams.Mode)
	assert.Equal(t, "payout", payoutParams.Purpose)
	assert.Equal(t, "Withdrawal from DrivoPay", payoutParams.Narration)
	assert.True(t, payoutParams.QueueIfLowBalance)
	assert.Regexp(t, `^payout_\d+_[0-9a-f]{8}$`, payoutParams.ReferenceID)
	assert.NotEmpty(t, payoutParams.IdempotencyKey)

	assert.Equal(t, []string{stateTopic, stateTopic, stateTopic, stateTopic}, f.publisher.Subjects())
	event := f.lastEvent(t)
	assert.Equal(t, models.StateCompleted, event.State)
	assert.Equal(t, models.StatePendingPayout, event.PreviousState)
	assert.Equal(t, payoutParams.IdempotencyKey, event.SagaID)

	saga, err := f.svc.GetSaga(context.Background(), event.SagaID)
	require.NoError(t, err)
	assert.Equal(t, "cont_1", saga.ContactID)
	assert.Equal(t, "pout_1", saga.PayoutID)
}

func TestCreatePayout_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.PayoutRequest)
		kind    service.ErrorKind
		message string
	}{
		{"zero amount", func(r *models.PayoutRequest) { r.Amount = decimal.Zero }, service.KindInvalidAmount, "Invalid amount"},
		{"negative amount", func(r *models.PayoutRequest) { r.Amount = decimal.NewFromInt(-1) }, service.KindInvalidAmount, "Invalid amount"},
		{"missing ifsc", func(r *models.PayoutRequest) { r.IFSC = "" }, service.KindMissingBankDetails, "Missing required bank details"},
		{"missing name", func(r *models.PayoutRequest) { r.Name = "" }, service.KindMissingBankDetails, "Missing required bank details"},
		{"missing account", func(r *models.PayoutRequest) { r.AccountNumber = "" }, service.KindMissingBankDetails, "Missing required bank details"},
		{"amount checked first", func(r *models.PayoutRequest) { r.Amount = decimal.Zero; r.IFSC = "" }, service.KindInvalidAmount, "Invalid amount"},
		{"unknown mode", func(r *models.PayoutRequest) { r.Mode = "SWIFT" }, service.KindInvalidRequest, "Invalid transfer mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPayoutFixture(nil)
			req := validPayout()
			tt.mutate(&req)

			_, err := f.svc.CreatePayout(context.Background(), req)

			svcErr := requireKind(t, err, tt.kind)
			assert.Equal(t, tt.message, svcErr.Message)
			assert.Empty(t, f.gw.Calls)
			assert.Empty(t, f.publisher.Messages)
		})
	}
}

func TestCreatePayout_GatewayFailureMarksSagaFailed(t *testing.T) {
	f := newPayoutFixture(nil)
	f.gw.On("CreateContact", mock.Anything, mock.Anything).Return(&models.Contact{ID: "cont_1"}, nil).Once()
	f.gw.On("CreateFundAccount", mock.Anything, mock.Anything).
		Return(nil, &gateway.APIError{Operation: "create_fund_account", Description: "Invalid IFSC Code"}).Once()

	_, err := f.svc.CreatePayout(context.Background(), validPayout())

	svcErr := requireKind(t, err, service.KindGatewayError)
	assert.Equal(t, "Invalid IFSC Code", svcErr.Message)
	f.gw.AssertNotCalled(t, "CreatePayout", mock.Anything, mock.Anything)

	event := f.lastEvent(t)
	assert.Equal(t, models.StateFailed, event.State)
	assert.Equal(t, models.StepFundAccount, event.FailedStep)
}

func TestCreatePayout_IdempotentReplay(t *testing.T) {
	f := newPayoutFixture(nil)
	f.gw.On("CreateContact", mock.Anything, mock.Anything).Return(&models.Contact{ID: "cont_1"}, nil).Once()
	f.gw.On("CreateFundAccount", mock.Anything, mock.Anything).Return(&models.FundAccount{ID: "fa_1"}, nil).Once()
	f.gw.On("CreatePayout", mock.Anything, mock.Anything).
		Return(&models.Payout{ID: "pout_1", Status: "processed", UTR: "UTR0001"}, nil).Once()

	req := validPayout()
	req.IdempotencyKey = "withdraw-42"

	first, err := f.svc.CreatePayout(context.Background(), req)
	require.NoError(t, err)
	second, err := f.svc.CreatePayout(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "UTR0001", second.UTR)
	f.gw.AssertNumberOfCalls(t, "CreateContact", 1)
	f.gw.AssertNumberOfCalls(t, "CreatePayout", 1)
}

func TestCreatePayout_ResumeReusesContactAndFundAccount(t *testing.T) {
	f := newPayoutFixture(nil)
	f.gw.On("CreateContact", mock.Anything, mock.Anything).Return(&models.Contact{ID: "cont_1"}, nil).Once()
	f.gw.On("CreateFundAccount", mock.Anything, mock.Anything).Return(&models.FundAccount{ID: "fa_1"}, nil).Once()
	f.gw.On("CreatePayout", mock.Anything, mock.Anything).
		Return(nil, &gateway.APIError{Operation: "create_payout", Description: "Gateway timed out"}).Once()
	f.gw.On("CreatePayout", mock.Anything, mock.MatchedBy(func(p models.PayoutParams) bool {
		return p.FundAccountID == "fa_1"
	})).Return(&models.Payout{ID: "pout_2", Status: "processing"}, nil).Once()

	req := validPayout()
	req.IdempotencyKey = "withdraw-43"

	_, err := f.svc.CreatePayout(context.Background(), req)
	requireKind(t, err, service.KindGatewayError)

	failed, err := f.repo.GetByIdempotencyKey(context.Background(), "withdraw-43")
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, failed.State)
	assert.Equal(t, models.StepPayout, failed.FailedStep)
	assert.Contains(t, failed.LastError, "Gateway timed out")

	resp, err := f.svc.CreatePayout(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "pout_2", resp.PayoutID)
	assert.Equal(t, "fa_1", resp.FundAccountID)
	f.gw.AssertNumberOfCalls(t, "CreateContact", 1)
	f.gw.AssertNumberOfCalls(t, "CreateFundAccount", 1)
	f.gw.AssertNumberOfCalls(t, "CreatePayout", 2)

	done, err := f.repo.GetByIdempotencyKey(context.Background(), "withdraw-43")
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, done.State)
	assert.Empty(t, done.LastError)
	assert.Equal(t, failed.SagaID, done.SagaID)
}

func TestCreatePayout_LockHeldElsewhere(t *testing.T) {
	locker := new(mocks.Locker)
	locker.On("Acquire", mock.Anything, "payout_lock:withdraw-44", 30*time.Second).Return(false, nil).Once()
	f := newPayoutFixture(locker)

	req := validPayout()
	req.IdempotencyKey = "withdraw-44"
	_, err := f.svc.CreatePayout(context.Background(), req)

	svcErr := requireKind(t, err, service.KindPayoutInProgress)
	assert.Equal(t, http.StatusConflict, svcErr.HTTPStatus())
	assert.Empty(t, f.gw.Calls)
	locker.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

// completionFailingRepo loses the COMPLETED write the given number of times.
type completionFailingRepo struct {
	*repository.MemoryPayoutSagaRepository
	failures int
}

func (r *completionFailingRepo) Transition(ctx context.Context, saga *models.PayoutSaga, from models.PayoutState) error {
	if saga.State == models.StateCompleted && r.failures > 0 {
		r.failures--
		return assert.AnError
	}
	return r.MemoryPayoutSagaRepository.Transition(ctx, saga, from)
}

func TestCreatePayout_ResumesSagaLeftPending(t *testing.T) {
	gw := new(mocks.Gateway)
	repo := &completionFailingRepo{MemoryPayoutSagaRepository: repository.NewMemoryPayoutSagaRepository(), failures: 1}
	svc := service.NewPayoutService(gw, repo, repository.NewMemoryLocker(), &mocks.Publisher{}, service.PayoutConfig{
		StateTopic: stateTopic,
	})

	var payoutKeys []string
	gw.On("CreateContact", mock.Anything, mock.Anything).Return(&models.Contact{ID: "cont_1"}, nil).Once()
	gw.On("CreateFundAccount", mock.Anything, mock.Anything).Return(&models.FundAccount{ID: "fa_1"}, nil).Once()
	gw.On("CreatePayout", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			payoutKeys = append(payoutKeys, args.Get(1).(models.PayoutParams).IdempotencyKey)
		}).
		Return(&models.Payout{ID: "pout_1", Status: "processing"}, nil).Twice()

	req := validPayout()
	req.IdempotencyKey = "withdraw-45"

	_, err := svc.CreatePayout(context.Background(), req)
	requireKind(t, err, service.KindUnknownError)

	stuck, err := repo.GetByIdempotencyKey(context.Background(), "withdraw-45")
	require.NoError(t, err)
	assert.Equal(t, models.StatePendingPayout, stuck.State)

	resp, err := svc.CreatePayout(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "pout_1", resp.PayoutID)
	gw.AssertNumberOfCalls(t, "CreateContact", 1)
	gw.AssertNumberOfCalls(t, "CreateFundAccount", 1)
	require.Len(t, payoutKeys, 2)
	assert.Equal(t, stuck.SagaID, payoutKeys[0])
	assert.Equal(t, payoutKeys[0], payoutKeys[1])

	done, err := repo.GetByIdempotencyKey(context.Background(), "withdraw-45")
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, done.State)
}

func TestCreatePayout_PendingSagaUsesStoredBeneficiary(t *testing.T) {
	f := newPayoutFixture(nil)
	req := validPayout()
	req.IdempotencyKey = "withdraw-48"
	require.NoError(t, f.repo.Create(context.Background(), &models.PayoutSaga{
		SagaID: "saga-48", IdempotencyKey: "withdraw-48", State: models.StatePendingFundAccount,
		AmountMinor: 150075, Mode: models.ModeIMPS, BeneficiaryName: "Ravi Kumar",
		AccountNumber: "50100012345678", IFSC: "HDFC0001234", Purpose: "payout",
		Narration: "Withdrawal from DrivoPay", ContactID: "cont_9",
	}))

	f.gw.On("CreateFundAccount", mock.Anything, models.FundAccountParams{
		ContactID: "cont_9", Name: "Ravi Kumar", IFSC: "HDFC0001234", AccountNumber: "50100012345678",
	}).Return(&models.FundAccount{ID: "fa_9"}, nil).Once()
	f.gw.On("CreatePayout", mock.Anything, mock.MatchedBy(func(p models.PayoutParams) bool {
		return p.FundAccountID == "fa_9" && p.IdempotencyKey == "saga-48"
	})).Return(&models.Payout{ID: "pout_9", Status: "processing"}, nil).Once()

	resp, err := f.svc.CreatePayout(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "pout_9", resp.PayoutID)
	f.gw.AssertExpectations(t)
	f.gw.AssertNotCalled(t, "CreateContact", mock.Anything, mock.Anything)
}

func TestCreatePayout_ReusedKeyWithDifferentRequest(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.PayoutRequest)
	}{
		{"other account", func(r *models.PayoutRequest) { r.AccountNumber = "99999999999999" }},
		{"other ifsc", func(r *models.PayoutRequest) { r.IFSC = "ICIC0000001" }},
		{"other amount", func(r *models.PayoutRequest) { r.Amount = decimal.RequireFromString("1500.76") }},
		{"other mode", func(r *models.PayoutRequest) { r.Mode = models.ModeNEFT }},
		{"other narration", func(r *models.PayoutRequest) { r.Narration = "Bonus" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPayoutFixture(nil)
			f.gw.On("CreateContact", mock.Anything, mock.Anything).Return(&models.Contact{ID: "cont_1"}, nil).Once()
			f.gw.On("CreateFundAccount", mock.Anything, mock.Anything).Return(&models.FundAccount{ID: "fa_1"}, nil).Once()
			f.gw.On("CreatePayout", mock.Anything, mock.Anything).
				Return(&models.Payout{ID: "pout_1", Status: "processed"}, nil).Once()

			req := validPayout()
			req.IdempotencyKey = "withdraw-49"
			_, err := f.svc.CreatePayout(context.Background(), req)
			require.NoError(t, err)

			other := validPayout()
			other.IdempotencyKey = "withdraw-49"
			tt.mutate(&other)
			_, err = f.svc.CreatePayout(context.Background(), other)

			svcErr := requireKind(t, err, service.KindIdempotencyReused)
			assert.Equal(t, http.StatusUnprocessableEntity, svcErr.HTTPStatus())
			f.gw.AssertNumberOfCalls(t, "CreateContact", 1)
			f.gw.AssertNumberOfCalls(t, "CreatePayout", 1)
		})
	}
}

func TestCreatePayout_FailedSagaNotResumedForDifferentRequest(t *testing.T) {
	f := newPayoutFixture(nil)
	f.gw.On("CreateContact", mock.Anything, mock.Anything).Return(&models.Contact{ID: "cont_1"}, nil).Once()
	f.gw.On("CreateFundAccount", mock.Anything, mock.Anything).
		Return(nil, &gateway.APIError{Operation: "create_fund_account", Description: "Invalid IFSC Code"}).Once()

	req := validPayout()
	req.IdempotencyKey = "withdraw-50"
	_, err := f.svc.CreatePayout(context.Background(), req)
	requireKind(t, err, service.KindGatewayError)

	fixed := req
	fixed.IFSC = "HDFC0009999"
	_, err = f.svc.CreatePayout(context.Background(), fixed)

	requireKind(t, err, service.KindIdempotencyReused)
	f.gw.AssertNumberOfCalls(t, "CreateFundAccount", 1)

	saga, err := f.repo.GetByIdempotencyKey(context.Background(), "withdraw-50")
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, saga.State)
	assert.Equal(t, "HDFC0001234", saga.IFSC)
}

// stalledPublisher blocks until its context ends, like a broker that
// accepts connections but never acknowledges.
type stalledPublisher struct{}

func (stalledPublisher) Publish(ctx context.Context, _, _ string, _ []byte) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestCreatePayout_StalledPublisherDoesNotBlock(t *testing.T) {
	gw := new(mocks.Gateway)
	svc := service.NewPayoutService(gw, repository.NewMemoryPayoutSagaRepository(), repository.NewMemoryLocker(),
		stalledPublisher{}, service.PayoutConfig{StateTopic: stateTopic, PublishTimeout: 20 * time.Millisecond})

	gw.On("CreateContact", mock.Anything, mock.Anything).Return(&models.Contact{ID: "cont_1"}, nil).Once()
	gw.On("CreateFundAccount", mock.Anything, mock.Anything).Return(&models.FundAccount{ID: "fa_1"}, nil).Once()
	gw.On("CreatePayout", mock.Anything, mock.Anything).Return(&models.Payout{ID: "pout_1"}, nil).Once()

	start := time.Now()
	resp, err := svc.CreatePayout(context.Background(), validPayout())
	require.NoError(t, err)

	assert.Equal(t, "pout_1", resp.PayoutID)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCreatePayout_CancelledBeforeFirstStep(t *testing.T) {
	f := newPayoutFixture(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := validPayout()
	req.IdempotencyKey = "withdraw-46"
	_, err := f.svc.CreatePayout(ctx, req)

	requireKind(t, err, service.KindUnknownError)
	assert.Empty(t, f.gw.Calls)

	saga, err := f.repo.GetByIdempotencyKey(context.Background(), "withdraw-46")
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, saga.State)
	assert.Equal(t, models.StepContact, saga.FailedStep)
}

func TestCreatePayout_LockErrorFailsClosed(t *testing.T) {
	locker := new(mocks.Locker)
	locker.On("Acquire", mock.Anything, mock.Anything, mock.Anything).Return(false, assert.AnError)
	f := newPayoutFixture(locker)

	req := validPayout()
	req.IdempotencyKey = "withdraw-47"
	_, err := f.svc.CreatePayout(context.Background(), req)

	requireKind(t, err, service.KindUnknownError)
	assert.Empty(t, f.gw.Calls)
}
