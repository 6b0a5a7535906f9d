package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/drivopay/payments/internal/interfaces"
	"github.com/drivopay/payments/internal/models"
	"github.com/drivopay/payments/internal/service"
	"github.com/drivopay/payments/internal/telemetry"
)

const idempotencyKeyHeader = "Idempotency-Key"

type PayoutHandler struct {
	payouts *service.PayoutService
}

func NewPayoutHandler(payouts *service.PayoutService) *PayoutHandler {
	return &PayoutHandler{payouts: payouts}
}

func (h *PayoutHandler) CreatePayout(c *gin.Context) {
	var req models.PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidBody(err))
		return
	}
	req.IdempotencyKey = c.GetHeader(idempotencyKeyHeader)

	resp, err := h.payouts.CreatePayout(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"payoutId":      resp.PayoutID,
		"status":        resp.Status,
		"utr":           resp.UTR,
		"fundAccountId": resp.FundAccountID,
	})
}

func (h *PayoutHandler) GetPayoutState(c *gin.Context) {
	sagaID := c.Param("id")

	saga, err := h.payouts.GetSaga(c.Request.Context(), sagaID)
	if errors.Is(err, interfaces.ErrSagaNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payout saga not found"})
		return
	}

	if err != nil {
		telemetry.Logger.Error("Failed to fetch payout saga", zap.String("saga_id", sagaID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payout state"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"saga_id":         saga.SagaID,
		"state":           saga.State,
		"previous_state":  saga.PreviousState,
		"failed_step":     saga.FailedStep,
		"contact_id":      saga.ContactID,
		"fund_account_id": saga.FundAccountID,
		"payout_id":       saga.PayoutID,
		"payout_status":   saga.PayoutStatus,
		"utr":             saga.UTR,
		"last_error":      saga.LastError,
		"created_at":      saga.CreatedAt,
		"updated_at":      saga.UpdatedAt,
	})
}
