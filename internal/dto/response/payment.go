package response

import (
	"time"

	"tour-booking/internal/data/entity"
)

type PaymentInitResponse struct {
	PaymentID   string               `json:"payment_id"`
	BookingID   string               `json:"booking_id"`
	OrderID     string               `json:"order_id"`
	Provider    string               `json:"provider"`
	Token       string               `json:"token"`
	RedirectURL string               `json:"redirect_url"`
	Amount      float64              `json:"amount"`
	Currency    string               `json:"currency"`
	Status      entity.PaymentStatus `json:"status"`
}

type PaymentResponse struct {
	ID            string               `json:"id"`
	BookingID     string               `json:"booking_id"`
	OrderID       string               `json:"order_id"`
	Provider      string               `json:"provider"`
	TransactionID *string              `json:"transaction_id,omitempty"`
	Amount        float64              `json:"amount"`
	Currency      string               `json:"currency"`
	Status        entity.PaymentStatus `json:"status"`
	PaymentType   *string              `json:"payment_type,omitempty"`
	PaidAt        *time.Time           `json:"paid_at,omitempty"`
	BookingStatus entity.BookingStatus `json:"booking_status,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

func PaymentToResponse(p *entity.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID.String(),
		BookingID:     p.BookingID.String(),
		OrderID:       p.OrderID,
		Provider:      p.Provider,
		TransactionID: p.TransactionID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        p.Status,
		PaymentType:   p.PaymentType,
		PaidAt:        p.PaidAt,
		CreatedAt:     p.CreatedAt,
	}
}

// WebhookResponse is returned to the provider; any 2xx stops its retries.
type WebhookResponse struct {
	OrderID string `json:"order_id"`
	Outcome string `json:"outcome"`
}
