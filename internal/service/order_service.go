package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/drivopay/payments/internal/interfaces"
	"github.com/drivopay/payments/internal/models"
	"github.com/drivopay/payments/internal/telemetry"
)

const defaultCurrency = "INR"

type OrderService struct {
	gateway interfaces.Gateway
}

func NewOrderService(gateway interfaces.Gateway) *OrderService {
	return &OrderService{gateway: gateway}
}

// CreateOrder creates a checkout order for req.Amount rupees.
func (s *OrderService) CreateOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResponse, error) {
	minor, ok := ToMinorUnits(req.Amount)
	if !ok {
		return nil, newError(KindInvalidAmount, msgInvalidAmount, nil)
	}

	currency := req.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	receipt := req.Receipt
	if receipt == "" {
		receipt = receiptReference()
	}

	order, err := s.gateway.CreateOrder(ctx, models.GatewayOrderParams{
		AmountMinor: minor,
		Currency:    currency,
		Receipt:     receipt,
		Notes:       req.Notes,
	})
	if err != nil {
		return nil, gatewayError(err, "Failed to create order")
	}

	// Echo what the gateway recorded; it may normalise the request.
	resp := &models.OrderResponse{
		OrderID:  order.ID,
		Amount:   order.AmountMinor,
		Currency: order.Currency,
		Receipt:  order.Receipt,
	}
	if resp.Amount == 0 {
		resp.Amount = minor
	}
	if resp.Currency == "" {
		resp.Currency = currency
	}
	if resp.Receipt == "" {
		resp.Receipt = receipt
	}

	telemetry.Logger.Info("Order created",
		zap.String("order_id", resp.OrderID),
		zap.Int64("amount", resp.Amount),
		zap.String("receipt", resp.Receipt),
	)
	return resp, nil
}
