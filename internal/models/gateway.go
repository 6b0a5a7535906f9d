package models

// Parameters and results of the typed gateway client. Amounts are minor units.

type GatewayOrderParams struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

type GatewayOrder struct {
	ID          string
	AmountMinor int64
	Currency    string
	Receipt     string
	Status      string
}

type QRCodeParams struct {
	Name        string
	Description string
	CustomerID  string
	AmountMinor int64
	CloseBy     int64
	Notes       map[string]string
}

type QRCode struct {
	ID       string
	ImageURL string
	ShortURL string
	QRString string
}

type ContactParams struct {
	Name        string
	Type        string
	ReferenceID string
}

type Contact struct {
	ID string
}

type FundAccountParams struct {
	ContactID     string
	Name          string
	IFSC          string
	AccountNumber string
}

type FundAccount struct {
	ID string
}

type PayoutParams struct {
	SourceAccount     string
	FundAccountID     string
	AmountMinor       int64
	Currency          string
	Mode              TransferMode
	Purpose           string
	QueueIfLowBalance bool
	ReferenceID       string
	Narration         string
	Notes             map[string]string
	// IdempotencyKey is sent as X-Payout-Idempotency.
	IdempotencyKey string
}

type Payout struct {
	ID     string
	Status string
	UTR    string
}
