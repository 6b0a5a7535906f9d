package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/drivopay/payments/internal/models"
)

type Gateway struct {
	mock.Mock
}

func (m *Gateway) CreateOrder(ctx context.Context, params models.GatewayOrderParams) (*models.GatewayOrder, error) {
	args := m.Called(ctx, params)
	order, _ := args.Get(0).(*models.GatewayOrder)
	return order, args.Error(1)
}

func (m *Gateway) CreateQRCode(ctx context.Context, params models.QRCodeParams) (*models.QRCode, error) {
	args := m.Called(ctx, params)
	qr, _ := args.Get(0).(*models.QRCode)
	return qr, args.Error(1)
}

func (m *Gateway) CreateContact(ctx context.Context, params models.ContactParams) (*models.Contact, error) {
	args := m.Called(ctx, params)
	contact, _ := args.Get(0).(*models.Contact)
	return contact, args.Error(1)
}

func (m *Gateway) CreateFundAccount(ctx context.Context, params models.FundAccountParams) (*models.FundAccount, error) {
	args := m.Called(ctx, params)
	fa, _ := args.Get(0).(*models.FundAccount)
	return fa, args.Error(1)
}

func (m *Gateway) CreatePayout(ctx context.Context, params models.PayoutParams) (*models.Payout, error) {
	args := m.Called(ctx, params)
	payout, _ := args.Get(0).(*models.Payout)
	return payout, args.Error(1)
}
