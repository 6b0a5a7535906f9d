package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/drivopay/payments/internal/models"
	"github.com/drivopay/payments/internal/service"
)

type PaymentHandler struct {
	orders       *service.OrderService
	qr           *service.QRService
	verification *service.VerificationService
}

func NewPaymentHandler(orders *service.OrderService, qr *service.QRService, verification *service.VerificationService) *PaymentHandler {
	return &PaymentHandler{
		orders:       orders,
		qr:           qr,
		verification: verification,
	}
}

func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	var req models.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidBody(err))
		return
	}

	resp, err := h.orders.CreateOrder(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"orderId":  resp.OrderID,
		"amount":   resp.Amount,
		"currency": resp.Currency,
		"receipt":  resp.Receipt,
	})
}

func (h *PaymentHandler) CreateQR(c *gin.Context) {
	var req models.QRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidBody(err))
		return
	}

	resp, err := h.qr.CreateQR(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"qrCodeId": resp.QRCodeID,
		"imageUrl": resp.ImageURL,
		"shortUrl": resp.ShortURL,
		"qrString": resp.QRString,
	})
}

func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	var req models.VerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidBody(err))
		return
	}

	resp, err := h.verification.VerifyPayment(req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   resp.Message,
		"paymentId": resp.PaymentID,
		"orderId":   resp.OrderID,
	})
}
