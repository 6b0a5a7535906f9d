package interfaces

import (
	"context"

	"github.com/drivopay/payments/internal/models"
)

// Gateway is the typed surface of the payment gateway used by the services.
type Gateway interface {
	CreateOrder(ctx context.Context, params models.GatewayOrderParams) (*models.GatewayOrder, error)
	CreateQRCode(ctx context.Context, params models.QRCodeParams) (*models.QRCode, error)
	CreateContact(ctx context.Context, params models.ContactParams) (*models.Contact, error)
	CreateFundAccount(ctx context.Context, params models.FundAccountParams) (*models.FundAccount, error)
	CreatePayout(ctx context.Context, params models.PayoutParams) (*models.Payout, error)
}
