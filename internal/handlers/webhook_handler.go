package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/drivopay/payments/internal/service"
	"github.com/drivopay/payments/internal/telemetry"
)

const (
	signatureHeader = "X-Razorpay-Signature"
	eventIDHeader   = "X-Razorpay-Event-Id"

	maxWebhookBody = 1 << 20
)

type WebhookHandler struct {
	dispatcher *service.WebhookDispatcher
}

func NewWebhookHandler(dispatcher *service.WebhookDispatcher) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher}
}

// Receive reads the raw body before anything parses it; the signature covers
// the exact bytes sent.
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		telemetry.Logger.Warn("Webhook body too large", zap.Int64("limit", tooLarge.Limit))
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":     "Webhook payload too large",
			"errorKind": service.KindInvalidRequest,
		})
		return
	}
	if err != nil {
		telemetry.Logger.Error("Failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Webhook processing failed",
			"errorKind": service.KindUnknownError,
		})
		return
	}

	err = h.dispatcher.Dispatch(c.Request.Context(), body, c.GetHeader(signatureHeader), c.GetHeader(eventIDHeader))
	if err != nil {
		svcErr := service.AsError(err)
		c.JSON(svcErr.HTTPStatus(), gin.H{
			"error":     svcErr.Message,
			"errorKind": svcErr.Kind,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
