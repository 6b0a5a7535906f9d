package models

import "github.com/shopspring/decimal"

// Amounts are exact decimals in major currency units (rupees). A missing
// amount decodes to zero.

type OrderRequest struct {
	Amount   decimal.Decimal   `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes"`
}

type OrderResponse struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type QRRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	CustomerID  string          `json:"customerId"`
}

type QRResponse struct {
	QRCodeID string `json:"qrCodeId"`
	ImageURL string `json:"imageUrl"`
	ShortURL string `json:"shortUrl"`
	// QRString is the raw UPI payment string encoded by the QR.
	QRString string `json:"qrString"`
}

type VerificationRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type VerificationResponse struct {
	Message   string `json:"message"`
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
}
