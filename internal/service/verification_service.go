package service

import (
	"go.uber.org/zap"

	"github.com/drivopay/payments/internal/models"
	"github.com/drivopay/payments/internal/signature"
	"github.com/drivopay/payments/internal/telemetry"
)

type VerificationService struct {
	verifier *signature.Verifier
}

func NewVerificationService(verifier *signature.Verifier) *VerificationService {
	return &VerificationService{verifier: verifier}
}

// VerifyPayment checks the checkout signature over orderId|paymentId.
func (s *VerificationService) VerifyPayment(req models.VerificationRequest) (*models.VerificationResponse, error) {
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return nil, newError(KindMissingParameters, msgMissingParameters, nil)
	}

	if err := s.verifier.VerifyPayment(req.OrderID, req.PaymentID, req.Signature); err != nil {
		telemetry.Logger.Warn("Payment signature mismatch",
			zap.String("order_id", req.OrderID),
			zap.String("payment_id", req.PaymentID),
		)
		return nil, newError(KindInvalidSignature, msgInvalidPaymentSignature, err)
	}

	return &models.VerificationResponse{
		Message:   "Payment verified successfully",
		PaymentID: req.PaymentID,
		OrderID:   req.OrderID,
	}, nil
}
