package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/drivopay/payments/internal/interfaces"
	"github.com/drivopay/payments/internal/models"
)

const uniqueViolation = "23505"

type PayoutSagaRepository struct {
	db *sql.DB
}

func NewPayoutSagaRepository(db *sql.DB) *PayoutSagaRepository {
	return &PayoutSagaRepository{db: db}
}

func (r *PayoutSagaRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS payout_sagas (
			saga_id VARCHAR(64) PRIMARY KEY,
			idempotency_key VARCHAR(255),
			state VARCHAR(32) NOT NULL,
			previous_state VARCHAR(32) NOT NULL DEFAULT '',
			failed_step VARCHAR(32) NOT NULL DEFAULT '',
			amount_minor BIGINT NOT NULL,
			mode VARCHAR(8) NOT NULL,
			beneficiary_name VARCHAR(255) NOT NULL DEFAULT '',
			account_number VARCHAR(64) NOT NULL DEFAULT '',
			ifsc VARCHAR(16) NOT NULL DEFAULT '',
			purpose VARCHAR(64) NOT NULL DEFAULT '',
			narration VARCHAR(255) NOT NULL DEFAULT '',
			contact_reference VARCHAR(64) NOT NULL DEFAULT '',
			contact_id VARCHAR(64) NOT NULL DEFAULT '',
			fund_account_id VARCHAR(64) NOT NULL DEFAULT '',
			payout_reference VARCHAR(64) NOT NULL DEFAULT '',
			payout_id VARCHAR(64) NOT NULL DEFAULT '',
			payout_status VARCHAR(32) NOT NULL DEFAULT '',
			utr VARCHAR(64) NOT NULL DEFAULT '',
			last_error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`ALTER TABLE payout_sagas
			ADD COLUMN IF NOT EXISTS beneficiary_name VARCHAR(255) NOT NULL DEFAULT '',
			ADD COLUMN IF NOT EXISTS account_number VARCHAR(64) NOT NULL DEFAULT '',
			ADD COLUMN IF NOT EXISTS ifsc VARCHAR(16) NOT NULL DEFAULT '',
			ADD COLUMN IF NOT EXISTS purpose VARCHAR(64) NOT NULL DEFAULT '',
			ADD COLUMN IF NOT EXISTS narration VARCHAR(255) NOT NULL DEFAULT ''`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_payout_sagas_idempotency_key
			ON payout_sagas(idempotency_key) WHERE idempotency_key IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_payout_sagas_state ON payout_sagas(state)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (r *PayoutSagaRepository) Create(ctx context.Context, saga *models.PayoutSaga) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payout_sagas (saga_id, idempotency_key, state, amount_minor, mode,
			beneficiary_name, account_number, ifsc, purpose, narration, contact_reference, payout_reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, saga.SagaID, nullString(saga.IdempotencyKey), saga.State, saga.AmountMinor, saga.Mode,
		saga.BeneficiaryName, saga.AccountNumber, saga.IFSC, saga.Purpose, saga.Narration,
		saga.ContactReference, saga.PayoutReference)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return interfaces.ErrDuplicateIdempotencyKey
	}
	return err
}

func (r *PayoutSagaRepository) Transition(ctx context.Context, saga *models.PayoutSaga, from models.PayoutState) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE payout_sagas
		SET state = $1, previous_state = $2, failed_step = $3, contact_reference = $4,
			contact_id = $5, fund_account_id = $6, payout_reference = $7, payout_id = $8,
			payout_status = $9, utr = $10, last_error = $11, updated_at = NOW()
		WHERE saga_id = $12 AND state = $13
	`, saga.State, from, saga.FailedStep, saga.ContactReference,
		saga.ContactID, saga.FundAccountID, saga.PayoutReference, saga.PayoutID,
		saga.PayoutStatus, saga.UTR, saga.LastError,
		saga.SagaID, from)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return interfaces.ErrInvalidTransition
	}
	return nil
}

const selectSaga = `
	SELECT saga_id, idempotency_key, state, previous_state, failed_step, amount_minor, mode,
		beneficiary_name, account_number, ifsc, purpose, narration,
		contact_reference, contact_id, fund_account_id, payout_reference, payout_id,
		payout_status, utr, last_error, created_at, updated_at
	FROM payout_sagas`

func (r *PayoutSagaRepository) GetBySagaID(ctx context.Context, sagaID string) (*models.PayoutSaga, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectSaga+` WHERE saga_id = $1`, sagaID))
}

func (r *PayoutSagaRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.PayoutSaga, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectSaga+` WHERE idempotency_key = $1`, key))
}

func (r *PayoutSagaRepository) scanOne(row *sql.Row) (*models.PayoutSaga, error) {
	var saga models.PayoutSaga
	var key sql.NullString
	err := row.Scan(&saga.SagaID, &key, &saga.State, &saga.PreviousState, &saga.FailedStep,
		&saga.AmountMinor, &saga.Mode, &saga.BeneficiaryName, &saga.AccountNumber, &saga.IFSC,
		&saga.Purpose, &saga.Narration, &saga.ContactReference, &saga.ContactID, &saga.FundAccountID,
		&saga.PayoutReference, &saga.PayoutID, &saga.PayoutStatus, &saga.UTR, &saga.LastError,
		&saga.CreatedAt, &saga.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrSagaNotFound
	}
	if err != nil {
		return nil, err
	}
	saga.IdempotencyKey = key.String
	return &saga, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
