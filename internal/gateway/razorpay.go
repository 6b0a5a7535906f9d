package gateway

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/requests"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/drivopay/payments/internal/models"
	"github.com/drivopay/payments/internal/telemetry"
)

const (
	contactsPath     = "/v1/contacts"
	fundAccountsPath = "/v1/fund_accounts"
	payoutsPath      = "/v1/payouts"

	payoutIdempotencyHeader = "X-Payout-Idempotency"
)

// APIError is a failed gateway call. Description carries the gateway's own
// error description when it sent one.
type APIError struct {
	Operation   string
	Description string
	Err         error
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("razorpay %s: %s", e.Operation, e.Description)
	}
	return fmt.Sprintf("razorpay %s: %v", e.Operation, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// api is the subset of the razorpay SDK the client calls.
type api interface {
	CreateOrder(data map[string]interface{}) (map[string]interface{}, error)
	CreateQRCode(data map[string]interface{}) (map[string]interface{}, error)
	Post(path string, data map[string]interface{}, headers map[string]string) (map[string]interface{}, error)
}

type sdk struct {
	client  *razorpay.Client
	request *requests.Request
}

func (s sdk) CreateOrder(data map[string]interface{}) (map[string]interface{}, error) {
	return s.client.Order.Create(data, nil)
}

func (s sdk) CreateQRCode(data map[string]interface{}) (map[string]interface{}, error) {
	return s.client.QrCode.Create(data, nil)
}

func (s sdk) Post(path string, data map[string]interface{}, headers map[string]string) (map[string]interface{}, error) {
	return s.request.Post(path, data, headers)
}

// Client implements interfaces.Gateway on top of razorpay-go. One Client is
// built at startup and shared by all services.
type Client struct {
	api api
}

// NewClient builds the process-wide gateway client. razorpay.NewClient
// replaces the SDK's package-level Request on every call, so only one Client
// may be built per process; the request it installed is captured here.
func NewClient(keyID, keySecret string, timeout time.Duration) *Client {
	client := razorpay.NewClient(keyID, keySecret)
	request := razorpay.Request
	if seconds := timeoutSeconds(timeout); seconds > 0 {
		request.SetTimeout(seconds)
	}
	return &Client{api: sdk{client: client, request: request}}
}

// timeoutSeconds converts timeout to the SDK's int16 seconds. Sub-second
// timeouts round up to one second and long ones clamp to math.MaxInt16.
func timeoutSeconds(timeout time.Duration) int16 {
	if timeout <= 0 {
		return 0
	}
	seconds := int64((timeout + time.Second - 1) / time.Second)
	if seconds > math.MaxInt16 {
		return math.MaxInt16
	}
	return int16(seconds)
}

func (c *Client) CreateOrder(ctx context.Context, params models.GatewayOrderParams) (*models.GatewayOrder, error) {
	data := map[string]interface{}{
		"amount":   params.AmountMinor,
		"currency": params.Currency,
		"receipt":  params.Receipt,
	}
	if len(params.Notes) > 0 {
		data["notes"] = params.Notes
	}

	resp, err := c.call(ctx, "create_order", func() (map[string]interface{}, error) {
		return c.api.CreateOrder(data)
	})
	if err != nil {
		return nil, err
	}

	return &models.GatewayOrder{
		ID:          str(resp, "id"),
		AmountMinor: integer(resp, "amount"),
		Currency:    str(resp, "currency"),
		Receipt:     str(resp, "receipt"),
		Status:      str(resp, "status"),
	}, nil
}

func (c *Client) CreateQRCode(ctx context.Context, params models.QRCodeParams) (*models.QRCode, error) {
	data := map[string]interface{}{
		"type":           "upi_qr",
		"name":           params.Name,
		"usage":          "single_use",
		"fixed_amount":   true,
		"payment_amount": params.AmountMinor,
		"description":    params.Description,
		"close_by":       params.CloseBy,
		"notes":          params.Notes,
	}
	if params.CustomerID != "" {
		data["customer_id"] = params.CustomerID
	}

	resp, err := c.call(ctx, "create_qr_code", func() (map[string]interface{}, error) {
		return c.api.CreateQRCode(data)
	})
	if err != nil {
		return nil, err
	}

	return &models.QRCode{
		ID:       str(resp, "id"),
		ImageURL: str(resp, "image_url"),
		ShortURL: str(resp, "short_url"),
		QRString: str(resp, "qr_string"),
	}, nil
}

func (c *Client) CreateContact(ctx context.Context, params models.ContactParams) (*models.Contact, error) {
	data := map[string]interface{}{
		"name":         params.Name,
		"type":         params.Type,
		"reference_id": params.ReferenceID,
	}

	resp, err := c.call(ctx, "create_contact", func() (map[string]interface{}, error) {
		return c.api.Post(contactsPath, data, nil)
	})
	if err != nil {
		return nil, err
	}
	return &models.Contact{ID: str(resp, "id")}, nil
}

func (c *Client) CreateFundAccount(ctx context.Context, params models.FundAccountParams) (*models.FundAccount, error) {
	data := map[string]interface{}{
		"contact_id":   params.ContactID,
		"account_type": "bank_account",
		"bank_account": map[string]interface{}{
			"name":           params.Name,
			"ifsc":           params.IFSC,
			"account_number": params.AccountNumber,
		},
	}

	resp, err := c.call(ctx, "create_fund_account", func() (map[string]interface{}, error) {
		return c.api.Post(fundAccountsPath, data, nil)
	})
	if err != nil {
		return nil, err
	}
	return &models.FundAccount{ID: str(resp, "id")}, nil
}

func (c *Client) CreatePayout(ctx context.Context, params models.PayoutParams) (*models.Payout, error) {
	data := map[string]interface{}{
		"account_number":       params.SourceAccount,
		"fund_account_id":      params.FundAccountID,
		"amount":               params.AmountMinor,
		"currency":             params.Currency,
		"mode":                 string(params.Mode),
		"purpose":              params.Purpose,
		"queue_if_low_balance": params.QueueIfLowBalance,
		"reference_id":         params.ReferenceID,
		"narration":            params.Narration,
		"notes":                params.Notes,
	}
	var headers map[string]string
	if params.IdempotencyKey != "" {
		headers = map[string]string{payoutIdempotencyHeader: params.IdempotencyKey}
	}

	resp, err := c.call(ctx, "create_payout", func() (map[string]interface{}, error) {
		return c.api.Post(payoutsPath, data, headers)
	})
	if err != nil {
		return nil, err
	}

	return &models.Payout{
		ID:     str(resp, "id"),
		Status: str(resp, "status"),
		UTR:    str(resp, "utr"),
	}, nil
}

// call runs one SDK request inside a span and records its metrics. The SDK
// has no context support, so cancellation is only honoured before the call.
func (c *Client) call(ctx context.Context, operation string, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	_, span := telemetry.Tracer.Start(ctx, "razorpay."+operation)
	defer span.End()

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, &APIError{Operation: operation, Err: err}
	}

	start := time.Now()
	resp, err := fn()
	if err == nil {
		if desc := errorDescription(resp); desc != "" {
			err = errors.New(desc)
		} else if str(resp, "id") == "" {
			// razorpay-go answers some 4xx responses with an empty map and no error.
			err = errEmptyResponse
		}
	}
	telemetry.ObserveGatewayCall(operation, start, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		telemetry.Logger.Error("Gateway call failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
		return nil, &APIError{Operation: operation, Description: err.Error(), Err: err}
	}

	span.SetAttributes(attribute.String("razorpay.entity_id", str(resp, "id")))
	return resp, nil
}

var errEmptyResponse = errors.New("gateway returned no entity")

// errorDescription extracts error.description from an error body the SDK
// returned without an error value.
func errorDescription(resp map[string]interface{}) string {
	body, ok := resp["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	if desc := str(body, "description"); desc != "" {
		return desc
	}
	return "gateway returned an error"
}

func str(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// integer reads a JSON number, which the SDK decodes as float64.
func integer(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}
