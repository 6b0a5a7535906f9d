package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransferMode string

const (
	ModeIMPS TransferMode = "IMPS"
	ModeNEFT TransferMode = "NEFT"
	ModeRTGS TransferMode = "RTGS"
	ModeUPI  TransferMode = "UPI"
)

func (m TransferMode) Valid() bool {
	switch m {
	case ModeIMPS, ModeNEFT, ModeRTGS, ModeUPI:
		return true
	}
	return false
}

type PayoutRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	AccountNumber string          `json:"accountNumber"`
	IFSC          string          `json:"ifsc"`
	Name          string          `json:"name"`
	Mode          TransferMode    `json:"mode"`
	Purpose       string          `json:"purpose"`
	Narration     string          `json:"narration"`
	// IdempotencyKey comes from the Idempotency-Key header, not the body.
	IdempotencyKey string `json:"-"`
}

type PayoutResponse struct {
	PayoutID      string `json:"payoutId"`
	Status        string `json:"status"`
	UTR           string `json:"utr"`
	FundAccountID string `json:"fundAccountId"`
}

type PayoutState string

const (
	StatePendingContact     PayoutState = "PENDING_CONTACT"
	StatePendingFundAccount PayoutState = "PENDING_FUND_ACCOUNT"
	StatePendingPayout      PayoutState = "PENDING_PAYOUT"
	StateCompleted          PayoutState = "COMPLETED"
	StateFailed             PayoutState = "FAILED"
)

func (s PayoutState) Pending() bool {
	switch s {
	case StatePendingContact, StatePendingFundAccount, StatePendingPayout:
		return true
	}
	return false
}

type PayoutStep string

const (
	StepContact     PayoutStep = "contact"
	StepFundAccount PayoutStep = "fund_account"
	StepPayout      PayoutStep = "payout"
)

// PendingState is the state in which the saga waits for step to run.
func (s PayoutStep) PendingState() PayoutState {
	switch s {
	case StepFundAccount:
		return StatePendingFundAccount
	case StepPayout:
		return StatePendingPayout
	default:
		return StatePendingContact
	}
}

// PayoutSaga is the persisted progress of one contact -> fund account ->
// payout chain. It keeps the request it was started with so a resumed step
// runs against the same beneficiary.
type PayoutSaga struct {
	SagaID           string
	IdempotencyKey   string
	State            PayoutState
	PreviousState    PayoutState
	FailedStep       PayoutStep
	AmountMinor      int64
	Mode             TransferMode
	BeneficiaryName  string
	AccountNumber    string
	IFSC             string
	Purpose          string
	Narration        string
	ContactReference string
	ContactID        string
	FundAccountID    string
	PayoutReference  string
	PayoutID         string
	PayoutStatus     string
	UTR              string
	LastError        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SameRequest reports whether req, already defaulted and converted to
// amountMinor, describes the payout this saga was started for.
func (s *PayoutSaga) SameRequest(req PayoutRequest, amountMinor int64) bool {
	return s.AmountMinor == amountMinor &&
		s.Mode == req.Mode &&
		s.BeneficiaryName == req.Name &&
		s.AccountNumber == req.AccountNumber &&
		s.IFSC == req.IFSC &&
		s.Purpose == req.Purpose &&
		s.Narration == req.Narration
}

func (s *PayoutSaga) Response() *PayoutResponse {
	return &PayoutResponse{
		PayoutID:      s.PayoutID,
		Status:        s.PayoutStatus,
		UTR:           s.UTR,
		FundAccountID: s.FundAccountID,
	}
}

type PayoutStateChangedEvent struct {
	SagaID        string      `json:"saga_id"`
	State         PayoutState `json:"state"`
	PreviousState PayoutState `json:"previous_state"`
	FailedStep    PayoutStep  `json:"failed_step,omitempty"`
	PayoutID      string      `json:"payout_id,omitempty"`
	AmountMinor   int64       `json:"amount"`
	Timestamp     time.Time   `json:"timestamp"`
}
