package gateway

import (
	"context"
	"errors"

	"tour-booking/internal/data/entity"
)

var (
	ErrInvalidSignature    = errors.New("invalid notification signature")
	ErrMalformedPayload    = errors.New("malformed notification payload")
	ErrTransactionNotFound = errors.New("transaction not found at provider")
)

type Customer struct {
	Name  string
	Email string
	Phone string
}

type Item struct {
	ID       string
	Name     string
	Price    float64
	Quantity int
}

type CheckoutRequest struct {
	OrderID       string
	Amount        float64
	Currency      string
	Customer      Customer
	Items         []Item
	ExpiryMinutes int
}

type Checkout struct {
	Token       string
	RedirectURL string
}

// Notification is a provider status report, either pushed to the webhook or
// pulled with GetStatus. Status is already normalised.
type Notification struct {
	OrderID           string
	TransactionID     string
	TransactionStatus string
	FraudStatus       string
	StatusCode        string
	GrossAmount       float64
	PaymentType       string
	Status            entity.PaymentStatus
	Raw               []byte
}

// Gateway is the boundary to the external payment provider.
type Gateway interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	GetStatus(ctx context.Context, orderID string) (*Notification, error)
	// ParseNotification authenticates and decodes a webhook body.
	ParseNotification(body []byte) (*Notification, error)
	// ChargedAmount is the amount the provider will report for a charge of amount.
	ChargedAmount(amount float64) float64
}
