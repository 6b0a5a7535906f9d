package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/drivopay/payments/internal/interfaces"
	"github.com/drivopay/payments/internal/models"
	"github.com/drivopay/payments/internal/telemetry"
)

const (
	qrLifetime           = time.Hour
	defaultQRName        = "Payment QR"
	defaultQRDescription = "Scan to pay"
)

type QRService struct {
	gateway interfaces.Gateway
}

func NewQRService(gateway interfaces.Gateway) *QRService {
	return &QRService{gateway: gateway}
}

// CreateQR creates a single-use UPI QR for a fixed amount that closes an
// hour after creation.
func (s *QRService) CreateQR(ctx context.Context, req models.QRRequest) (*models.QRResponse, error) {
	minor, ok := ToMinorUnits(req.Amount)
	if !ok {
		return nil, newError(KindInvalidAmount, msgInvalidAmount, nil)
	}

	name := req.Name
	if name == "" {
		name = defaultQRName
	}
	description := req.Description
	if description == "" {
		description = defaultQRDescription
	}

	created := now()
	qr, err := s.gateway.CreateQRCode(ctx, models.QRCodeParams{
		Name:        name,
		Description: description,
		CustomerID:  req.CustomerID,
		AmountMinor: minor,
		CloseBy:     created.Add(qrLifetime).Unix(),
		Notes: map[string]string{
			"purpose":    "QR Code Payment",
			"created_at": created.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, gatewayError(err, "Failed to create QR code")
	}

	telemetry.Logger.Info("QR code created",
		zap.String("qr_code_id", qr.ID),
		zap.Int64("amount", minor),
	)

	return &models.QRResponse{
		QRCodeID: qr.ID,
		ImageURL: qr.ImageURL,
		ShortURL: qr.ShortURL,
		QRString: qr.QRString,
	}, nil
}
